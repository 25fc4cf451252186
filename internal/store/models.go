package store

import "time"

// ReferenceCase is a trusted value of P(a,x) and Q(a,x).
type ReferenceCase struct {
	ID        int64
	Label     string
	A         float64
	X         float64
	P         float64
	Q         float64
	Source    string // "manual", "import", "gonum", ...
	CreatedAt time.Time
}

// CheckRun summarises one comparison of the engine against reference values.
type CheckRun struct {
	ID        string // uuid
	Method    string // "polynomial" or "temme"
	Oracle    string // "store" or "gonum"
	Cases     int
	Failures  int
	MeanErr   float64
	P50Err    float64
	P99Err    float64
	MaxErr    float64
	CreatedAt time.Time
}

// CheckResult is one evaluated case within a run.
type CheckResult struct {
	RunID  string
	CaseID int64 // 0 when the oracle is not the store
	A      float64
	X      float64
	P      float64
	Q      float64
	WantP  float64
	WantQ  float64
	RelErr float64
	Branch string
}
