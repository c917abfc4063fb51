package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/flemzord/chatd/internal/tool"
)

// Grade weights: projects 60%, exams 30%, participation 10%.
const (
	weightProjects      = 0.60
	weightExams         = 0.30
	weightParticipation = 0.10
)

// Grade computes a weighted final grade from component percentages.
// The tool is fully deterministic so the model cannot fudge arithmetic.
type Grade struct{}

// NewGrade creates the calculate_grade tool.
func NewGrade() *Grade { return &Grade{} }

func (g *Grade) Name() string { return "calculate_grade" }

func (g *Grade) Description() string {
	return "Compute weighted grade from project/exam/participation percentages (0-100)."
}

func (g *Grade) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"project": {"type": "number"},
			"exams": {"type": "number"},
			"participation": {"type": "number"}
		},
		"required": ["project", "exams", "participation"]
	}`)
}

type gradeArgs struct {
	Project       *float64 `json:"project"`
	Exams         *float64 `json:"exams"`
	Participation *float64 `json:"participation"`
}

type gradeResult struct {
	FinalPercentage float64            `json:"final_percentage"`
	Weights         map[string]float64 `json:"weights"`
	Inputs          map[string]float64 `json:"inputs"`
}

// Execute validates the three components and returns the weighted result
// rounded to two decimals. Out-of-range inputs are rejected rather than
// clamped so a typo like 900 surfaces instead of silently becoming 100.
func (g *Grade) Execute(_ context.Context, args json.RawMessage) tool.Output {
	var in gradeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Errorf(tool.ErrorKindInvalidArguments, "invalid arguments: "+err.Error())
	}

	components := map[string]*float64{
		"project":       in.Project,
		"exams":         in.Exams,
		"participation": in.Participation,
	}
	for name, v := range components {
		if v == nil {
			return tool.Errorf(tool.ErrorKindInvalidArguments, name+" is required")
		}
		if *v < 0 || *v > 100 {
			return tool.Errorf(tool.ErrorKindInvalidArguments,
				fmt.Sprintf("%s must be between 0 and 100, got %g", name, *v))
		}
	}

	final := Compute(*in.Project, *in.Exams, *in.Participation)

	out, _ := json.Marshal(gradeResult{
		FinalPercentage: final,
		Weights: map[string]float64{
			"projects":      weightProjects,
			"exams":         weightExams,
			"participation": weightParticipation,
		},
		Inputs: map[string]float64{
			"project":       *in.Project,
			"exams":         *in.Exams,
			"participation": *in.Participation,
		},
	})
	return tool.Output{Content: string(out)}
}

// Compute returns the weighted final percentage rounded to two decimals.
func Compute(project, exams, participation float64) float64 {
	final := project*weightProjects + exams*weightExams + participation*weightParticipation
	return math.Round(final*100) / 100
}
