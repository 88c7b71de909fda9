package dictionary

// Builtin returns the entries every store starts with unless configured
// otherwise. petrichor is long enough to be sent in chunks at the default
// chunk size.
func Builtin() []Entry {
	return []Entry{
		{
			Word:          "serendipity",
			Pronunciation: "/ˌsɛr.ənˈdɪp.ɪ.ti/",
			Definitions: []Definition{{
				PartOfSpeech: "noun",
				Meaning:      "The occurrence of events by chance in a happy or beneficial way.",
				Examples:     []string{"A fortunate stroke of serendipity brought the two old friends together."},
			}},
			Synonyms:  []string{"chance", "fluke", "luck"},
			Etymology: "Coined by Horace Walpole in 1754 after The Three Princes of Serendip.",
		},
		{
			Word:          "ephemeral",
			Pronunciation: "/ɪˈfɛm.ər.əl/",
			Definitions: []Definition{
				{PartOfSpeech: "adjective", Meaning: "Lasting for a very short time.", Examples: []string{"Fame in the world of rock and pop is largely ephemeral."}},
				{PartOfSpeech: "noun", Meaning: "A plant that lives for a very short time."},
			},
			Synonyms:  []string{"transitory", "fleeting", "momentary"},
			Etymology: "From Greek ephēmeros, lasting only a day.",
		},
		{
			Word:          "quixotic",
			Pronunciation: "/kwɪkˈsɒt.ɪk/",
			Definitions: []Definition{{
				PartOfSpeech: "adjective",
				Meaning:      "Exceedingly idealistic; unrealistic and impractical.",
				Examples:     []string{"A vast and perhaps quixotic project."},
			}},
			Synonyms:  []string{"idealistic", "romantic", "visionary"},
			Etymology: "From Don Quixote, hero of the romance by Cervantes.",
		},
		{
			Word:          "petrichor",
			Pronunciation: "/ˈpɛt.rɪ.kɔːr/",
			Definitions: []Definition{{
				PartOfSpeech: "noun",
				Meaning:      "A pleasant smell that frequently accompanies the first rain after a long period of warm, dry weather.",
				Examples: []string{
					"The petrichor rose from the pavement as the first drops of the storm fell.",
					"She opened the window to let in the petrichor after the summer drought finally broke.",
					"Hikers often describe petrichor as the smell of the desert coming back to life.",
				},
			}},
			Synonyms:  []string{"rain scent", "geosmin"},
			Etymology: "Coined in 1964 by Australian researchers Isabel Bear and Richard Thomas, from Greek petra (stone) and ichor, the fluid that flows in the veins of the gods in Greek mythology.",
		},
		{
			Word:          "sonder",
			Pronunciation: "/ˈsɒn.dər/",
			Definitions: []Definition{{
				PartOfSpeech: "noun",
				Meaning:      "The realization that each passerby has a life as vivid and complex as one's own.",
			}},
			Etymology: "Coined in 2012 by John Koenig for The Dictionary of Obscure Sorrows.",
		},
	}
}
