package categorize

import "strings"

// Other is the fallback category.
const Other = "Other"

// Labels is the fixed set of expense categories.
var Labels = []string{
	"Vegetables",
	"Fruits",
	"Meat",
	"Electricity",
	"Ghee",
	"Rice",
	"Onions",
	"Milk",
	"Rent",
	"Transport",
	"Groceries",
	"Dining Out",
	"Entertainment",
	"Utilities",
	"Health",
	"Education",
	"Clothing",
	"Personal Care",
	"Home Improvement",
	Other,
}

var labelIndex = func() map[string]string {
	m := make(map[string]string, len(Labels))
	for _, l := range Labels {
		m[strings.ToLower(l)] = l
	}
	return m
}()

// Normalize maps a label to its canonical spelling. Unknown labels become Other.
func Normalize(label string) string {
	if l, ok := labelIndex[strings.ToLower(strings.TrimSpace(label))]; ok {
		return l
	}
	return Other
}

// Valid reports whether label is one of Labels, ignoring case.
func Valid(label string) bool {
	_, ok := labelIndex[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// Keyword returns the category for an expense name using exact then
// substring matching, or Other.
func Keyword(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Other
	}

	if cat, ok := exactMatch[n]; ok {
		return cat
	}
	for _, entry := range substringMatches {
		if strings.Contains(n, entry.keyword) {
			return entry.category
		}
	}
	return Other
}

var exactMatch = map[string]string{
	// Vegetables
	"tomato":      "Vegetables",
	"tomatoes":    "Vegetables",
	"potato":      "Vegetables",
	"potatoes":    "Vegetables",
	"aloo":        "Vegetables",
	"spinach":     "Vegetables",
	"palak":       "Vegetables",
	"cabbage":     "Vegetables",
	"cauliflower": "Vegetables",
	"gobi":        "Vegetables",
	"carrot":      "Vegetables",
	"carrots":     "Vegetables",
	"brinjal":     "Vegetables",
	"okra":        "Vegetables",
	"bhindi":      "Vegetables",
	"peas":        "Vegetables",
	"capsicum":    "Vegetables",
	"cucumber":    "Vegetables",
	"garlic":      "Vegetables",
	"ginger":      "Vegetables",
	"coriander":   "Vegetables",
	"chilli":      "Vegetables",
	"chillies":    "Vegetables",

	// Fruits
	"apple":       "Fruits",
	"apples":      "Fruits",
	"banana":      "Fruits",
	"bananas":     "Fruits",
	"mango":       "Fruits",
	"mangoes":     "Fruits",
	"orange":      "Fruits",
	"oranges":     "Fruits",
	"grapes":      "Fruits",
	"papaya":      "Fruits",
	"guava":       "Fruits",
	"pomegranate": "Fruits",
	"watermelon":  "Fruits",

	// Meat
	"chicken": "Meat",
	"mutton":  "Meat",
	"fish":    "Meat",
	"eggs":    "Meat",
	"prawns":  "Meat",

	"ghee":    "Ghee",
	"rice":    "Rice",
	"basmati": "Rice",
	"onion":   "Onions",
	"onions":  "Onions",
	"pyaz":    "Onions",
	"milk":    "Milk",
	"curd":    "Milk",
	"paneer":  "Milk",
	"rent":    "Rent",

	"electricity": "Electricity",
	"power bill":  "Electricity",

	// Transport
	"petrol": "Transport",
	"diesel": "Transport",
	"auto":   "Transport",
	"taxi":   "Transport",
	"uber":   "Transport",
	"ola":    "Transport",
	"bus":    "Transport",
	"metro":  "Transport",
	"train":  "Transport",

	// Groceries
	"atta":   "Groceries",
	"flour":  "Groceries",
	"dal":    "Groceries",
	"sugar":  "Groceries",
	"salt":   "Groceries",
	"oil":    "Groceries",
	"tea":    "Groceries",
	"bread":  "Groceries",
	"spices": "Groceries",

	// Utilities
	"water":     "Utilities",
	"gas":       "Utilities",
	"cylinder":  "Utilities",
	"internet":  "Utilities",
	"wifi":      "Utilities",
	"broadband": "Utilities",
	"recharge":  "Utilities",

	"netflix": "Entertainment",
	"movie":   "Entertainment",
	"movies":  "Entertainment",

	"medicine":  "Health",
	"medicines": "Health",
	"doctor":    "Health",
	"pharmacy":  "Health",

	"tuition": "Education",
	"books":   "Education",

	"shirt": "Clothing",
	"saree": "Clothing",
	"shoes": "Clothing",

	"shampoo":    "Personal Care",
	"soap":       "Personal Care",
	"toothpaste": "Personal Care",
	"haircut":    "Personal Care",

	"paint":       "Home Improvement",
	"plumber":     "Home Improvement",
	"electrician": "Home Improvement",
}

type substringEntry struct {
	keyword  string
	category string
}

// substringMatches is checked in order; more specific keywords come first.
var substringMatches = []substringEntry{
	{"electricity", "Electricity"},
	{"electric bill", "Electricity"},
	{"power bill", "Electricity"},
	{"restaurant", "Dining Out"},
	{"swiggy", "Dining Out"},
	{"zomato", "Dining Out"},
	{"dinner", "Dining Out"},
	{"lunch", "Dining Out"},
	{"takeaway", "Dining Out"},
	{"gas cylinder", "Utilities"},
	{"water bill", "Utilities"},
	{"internet", "Utilities"},
	{"wifi", "Utilities"},
	{"mobile", "Utilities"},
	{"rent", "Rent"},
	{"ghee", "Ghee"},
	{"rice", "Rice"},
	{"onion", "Onions"},
	{"milk", "Milk"},
	{"chicken", "Meat"},
	{"mutton", "Meat"},
	{"fish", "Meat"},
	{"egg", "Meat"},
	{"tomato", "Vegetables"},
	{"potato", "Vegetables"},
	{"vegetable", "Vegetables"},
	{"sabzi", "Vegetables"},
	{"fruit", "Fruits"},
	{"banana", "Fruits"},
	{"apple", "Fruits"},
	{"mango", "Fruits"},
	{"petrol", "Transport"},
	{"fuel", "Transport"},
	{"taxi", "Transport"},
	{"ticket", "Transport"},
	{"movie", "Entertainment"},
	{"subscription", "Entertainment"},
	{"medic", "Health"},
	{"hospital", "Health"},
	{"clinic", "Health"},
	{"school", "Education"},
	{"fees", "Education"},
	{"course", "Education"},
	{"cloth", "Clothing"},
	{"salon", "Personal Care"},
	{"cosmetic", "Personal Care"},
	{"repair", "Home Improvement"},
	{"hardware", "Home Improvement"},
	{"furniture", "Home Improvement"},
	{"grocery", "Groceries"},
	{"groceries", "Groceries"},
	{"kirana", "Groceries"},
	{"dal", "Groceries"},
	{"atta", "Groceries"},
}
