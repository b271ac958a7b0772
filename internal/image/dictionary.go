package image

import "strings"

// dictionary covers common flashcard words so searches work offline
var dictionary = map[string]string{
	"ябълка":   "apple",
	"ягода":    "strawberry",
	"череша":   "cherry",
	"круша":    "pear",
	"праскова": "peach",
	"грозде":   "grapes",
	"банан":    "banana",
	"портокал": "orange",
	"лимон":    "lemon",
	"котка":    "cat",
	"куче":     "dog",
	"хляб":     "bread",
	"вода":     "water",
	"къща":     "house",
	"дърво":    "tree",
	"цвете":    "flower",
	"книга":    "book",
	"стол":     "chair",
	"маса":     "table",
	"прозорец": "window",
	"врата":    "door",
	"слънце":   "sun",
	"луна":     "moon",
	"море":     "sea",
	"планина":  "mountain",
	"кола":     "car",
	"влак":     "train",
	"самолет":  "airplane",
	"училище":  "school",
	"мляко":    "milk",
	"сирене":   "cheese",
	"риба":     "fish",
	"яйце":     "egg",
	"кафе":     "coffee",
	"чай":      "tea",
	"град":     "city",
	"село":     "village",
	"летище":   "airport",
	"гара":     "train station",
}

func lookupTranslation(word string) (string, bool) {
	translation, ok := dictionary[strings.ToLower(strings.TrimSpace(word))]
	return translation, ok
}
