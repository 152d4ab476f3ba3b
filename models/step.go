package models

// RawSample is one parsed device record. It lives only inside a step's
// aggregation window.
type RawSample struct {
	ADC  int
	Line string
}

// Summary is the reduction of one step's samples.
type Summary struct {
	N      int
	Min    int
	Max    int
	Mean   float64
	StdDev float64
}

// StepResult is one persisted row. Step and Samples are carried for reporting
// and are not written to the CSV.
type StepResult struct {
	Step      int     `json:"step"`
	Reference float64 `json:"reference"`
	MinADC    int     `json:"minAdc"`
	MaxADC    int     `json:"maxAdc"`
	AvgADC    float64 `json:"avgAdc"`
	Samples   int     `json:"samples"`
}
