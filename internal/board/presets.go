package board

var presetDishes = []Dish{
	{ID: "1", NameEn: "Avocado Toast", NameZh: "牛油果吐司"},
	{ID: "2", NameEn: "Kung Pao Chicken", NameZh: "宫保鸡丁"},
	{ID: "3", NameEn: "Greek Salad", NameZh: "希腊沙拉"},
	{ID: "4", NameEn: "Mapo Tofu", NameZh: "麻婆豆腐"},
	{ID: "5", NameEn: "Beef Stir-fry", NameZh: "小炒牛肉"},
	{ID: "6", NameEn: "Oatmeal with Fruits", NameZh: "水果燕麦粥"},
	{ID: "7", NameEn: "Spaghetti Carbonara", NameZh: "卡波纳拉意面"},
}

// Presets returns the quick-add dish library.
func Presets() []Dish {
	out := make([]Dish, len(presetDishes))
	copy(out, presetDishes)
	return out
}

// Preset looks up a library dish by id.
func Preset(id string) (Dish, bool) {
	for _, d := range presetDishes {
		if d.ID == id {
			return d, true
		}
	}
	return Dish{}, false
}

// PresetName is the name a quick-add inserts: the library name in lang only,
// without falling back to the other language.
func PresetName(d Dish, lang Lang) string {
	if lang == Chinese {
		return d.NameZh
	}
	return d.NameEn
}
