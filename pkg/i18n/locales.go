package i18n

import "golang.org/x/text/language"

// thinSpace separates a number from its unit.
const thinSpace = "\u2009"

// English returns the English locale.
func English() Locale {
	return Locale{
		Tag:          language.English,
		PointsSuffix: thinSpace + "pts",
		DateLayout:   "January 2, 2006",
		Messages: Messages{
			"widget_name":       "Grade Monitor",
			"goal":              "Your Goal",
			"goal_empty":        "Please select the final grade you want to achieve from the drop-down menu.",
			"goal_likely":       "You are on track to achieving your goal. Keep on going, you can do it!",
			"goal_unlikely":     "You don’t seem to be on the best way to achieving this goal. Overthink this, you’ll find your way.",
			"goal_unachievable": "Currently, you cannot achieve this goal. Don’t worry, focus, reconsider and carry on. You got this!",
			"goal_fail":         "Currently, you cannot pass this course. Don’t panic, focus, reconsider and carry on. You got this!",
			"scheme_updated":    "The grading scheme has been updated on: ",
			"th_optional":       "optional",
			"th_weight":         "weight",
			"th_name":           "task",
			"th_average":        "class average",
			"th_own_result":     "your result",
			"th_estimation":     "self estimation",
			"th_include":        "included",
			"th_percent":        "percentage of total score",
			"grade_completion":  "of your final grade is complete (excl. bonus tasks)",
			"current_grade":     "your current grade",
			"class_average":     "class average",
			"self_estimation":   "self estimated final grade",
			"best_possible":     "best possible grade",
			"legend":            "Tasks marked optional only contribute to the final grade if you would pass without the bonus.",
		},
	}
}

// German returns the German locale.
func German() Locale {
	return Locale{
		Tag:          language.German,
		PointsSuffix: thinSpace + "Pkte.",
		DateLayout:   "2.1.2006",
		Messages: Messages{
			"widget_name":       "Notenübersicht",
			"goal":              "Dein Ziel",
			"goal_empty":        "Bitte wähle aus dem Drop-Down-Menü, mit welcher Note du den Kurs abschließen möchtest.",
			"goal_likely":       "Du bist auf dem besten Weg, dein Ziel zu erreichen. Nur weiter so!",
			"goal_unlikely":     "Dein aktuelles Ziel scheint gerade außer Reichweite. Überdenke deine Pläne, du schaffst das!",
			"goal_unachievable": "Leider kannst du dieses Ziel aus aktueller Sicht nicht mehr erreichen. Keine Sorge, denk nach, du findest deinen Weg.",
			"goal_fail":         "Leider kannst du diesen Kurs aus aktueller Sicht nicht mehr bestehen. Keine Panik, konzentriere dich und du findest deinen Weg!",
			"scheme_updated":    "Das Benotungsschema wurde aktualisiert, am: ",
			"th_optional":       "freiwillig",
			"th_weight":         "Gewichtung",
			"th_name":           "Aufgabe",
			"th_average":        "Kursdurchschnitt",
			"th_own_result":     "Dein Ergebnis",
			"th_estimation":     "Selbsteinschätzung",
			"th_include":        "inkludiert",
			"th_percent":        "Prozent der Gesamtpunktezahl",
			"grade_completion":  "deiner Abschlussnote stehen fest (exkl. freiwilliger Aufgaben)",
			"current_grade":     "dein aktueller Notenstand",
			"class_average":     "Kursdurchschnitt",
			"self_estimation":   "selbst geschätzte Abschlussnote",
			"best_possible":     "bestmögliche Note",
			"legend":            "Freiwillige Aufgaben tragen nur zur Gesamtnote bei, wenn diese auch ohne freiwillige Aufgaben positiv wäre.",
		},
	}
}
