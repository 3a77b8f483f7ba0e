package model

// AdminDashboard summarizes sales and outcomes for the back office.
type AdminDashboard struct {
	TotalCandidates  int     `json:"total_candidates"`
	TotalPurchases   int     `json:"total_purchases"`
	TotalRevenue     float64 `json:"total_revenue"`
	ExamsCompleted   int     `json:"exams_completed"`
	ExamsPassed      int     `json:"exams_passed"`
	ExamsFailed      int     `json:"exams_failed"`
	PassRate         float64 `json:"pass_rate"`
	AverageScore     float64 `json:"average_score"`
	ForcedOutcomes   int     `json:"forced_outcomes"`
	QuestionBankSize int     `json:"question_bank_size"`
	LiveSessions     int     `json:"live_sessions"`
}
