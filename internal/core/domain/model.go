package domain

import "time"

// TreeNode is one node of a fitted decision tree, stored flat.
// Leaf nodes carry Class; split nodes send x <= Threshold to Left.
type TreeNode struct {
	Leaf      bool    `json:"leaf"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Class     int     `json:"class"`
}

// ModelState is the complete trained state of the adaptive risk model:
// feature transform, classifier parameters and label encoding.
type ModelState struct {
	FeatureScale float64    `json:"feature_scale"`
	Classes      []Tier     `json:"classes"`
	Nodes        []TreeNode `json:"nodes"`
	MaxDepth     int        `json:"max_depth"`
	Seed         int64      `json:"seed"`
	SampleCount  int        `json:"sample_count"`
	TrainedAt    time.Time  `json:"trained_at"`
}
