package core

const (
	CategoryFood          Category = "Ăn uống"
	CategoryTransport     Category = "Di chuyển"
	CategoryShopping      Category = "Mua sắm"
	CategoryBills         Category = "Hóa đơn"
	CategoryEntertainment Category = "Giải trí"
	CategoryHealth        Category = "Sức khỏe"
	CategoryEducation     Category = "Giáo dục"
	CategorySalary        Category = "Lương"
	CategoryInvestment    Category = "Đầu tư"
	CategoryOther         Category = "Khác"
)

type Category string

var (
	ExpenseCategories = []Category{
		CategoryFood, CategoryTransport, CategoryShopping, CategoryBills,
		CategoryEntertainment, CategoryHealth, CategoryEducation, CategoryOther,
	}
	IncomeCategories = []Category{CategorySalary, CategoryInvestment, CategoryOther}

	categoryIcons = map[Category]string{
		CategoryFood:          "🍔",
		CategoryTransport:     "🛵",
		CategoryShopping:      "🛍️",
		CategoryBills:         "🧾",
		CategoryEntertainment: "🎬",
		CategoryHealth:        "💊",
		CategoryEducation:     "📚",
		CategorySalary:        "💰",
		CategoryInvestment:    "📈",
		CategoryOther:         "📦",
	}
)

// AllCategories lists every known category once, expense categories first.
func AllCategories() []Category {
	out := make([]Category, 0, len(ExpenseCategories)+2)
	out = append(out, ExpenseCategories...)
	return append(out, CategorySalary, CategoryInvestment)
}

// CategoryIcon returns the icon for a category name; free-text categories get
// the "other" icon.
func CategoryIcon(name string) string {
	if icon, ok := categoryIcons[Category(name)]; ok {
		return icon
	}
	return categoryIcons[CategoryOther]
}
