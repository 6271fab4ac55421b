package board

// Entry is one leaderboard row: a student, their authoritative balance and
// the cosmetics they have equipped.
type Entry struct {
	Rank           int      `json:"rank"`
	StudentID      string   `json:"student_id"`
	Name           string   `json:"name"`
	Balance        int      `json:"balance"`
	TasksCompleted int      `json:"tasks_completed"`
	EquippedTitle  string   `json:"equipped_title,omitempty"`
	EquippedBadges []string `json:"equipped_badges,omitempty"`
}

// Rank is a single student's standing.
type Rank struct {
	StudentID     string  `json:"student_id"`
	Rank          int     `json:"rank"`
	Balance       int     `json:"balance"`
	TotalStudents int     `json:"total_students"`
	Percentile    float64 `json:"percentile"` // top X%
}

// SubjectStats aggregates completion per subject for a teacher's tasks.
type SubjectStats struct {
	Subject        string  `json:"subject"`
	Assigned       int     `json:"assigned"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// TeacherStats is the analytics view for one teacher.
type TeacherStats struct {
	Tasks        int            `json:"tasks"`
	Pending      int            `json:"pending"`
	Completed    int            `json:"completed"`
	CoinsAwarded int            `json:"coins_awarded"`
	PerSubject   []SubjectStats `json:"per_subject"`
}
