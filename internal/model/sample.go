package model

// SampleQuestions is the built-in question set used when no bank is available.
func SampleQuestions() []Question {
	return []Question{
		{
			ID:            "1",
			Level:         LevelB2,
			Section:       SectionGrammar,
			Text:          "By the time the sun sets, we ______ our work for the day.",
			Options:       []string{"will finish", "will have finished", "finish", "are finishing"},
			CorrectAnswer: 1,
		},
		{
			ID:            "2",
			Level:         LevelB2,
			Section:       SectionReading,
			Text:          "What is the main purpose of a topic sentence in a paragraph?",
			Options:       []string{"To provide a transition", "To summarize the paragraph", "To introduce the main idea", "To provide evidence"},
			CorrectAnswer: 2,
		},
		{
			ID:            "3",
			Level:         LevelC1,
			Section:       SectionUseOfEnglish,
			Text:          "Had I known about the traffic, I ______ another route.",
			Options:       []string{"would take", "will take", "would have taken", "should take"},
			CorrectAnswer: 2,
		},
		{
			ID:            "4",
			Level:         LevelC1,
			Section:       SectionListening,
			Text:          "Listen to the audio. What does the speaker imply about the future of renewable energy?",
			AudioURL:      "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
			Options:       []string{"It is a lost cause", "It requires more investment than expected", "It will eventually replace all fossil fuels", "It is currently at its peak"},
			CorrectAnswer: 2,
		},
	}
}
