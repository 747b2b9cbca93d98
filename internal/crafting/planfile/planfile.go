// Package planfile reads and writes crafting plans as JSON documents.
package planfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rsned/craft-market-planner/internal/crafting/engine"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// CurrentVersion is the plan format version this package writes.
const CurrentVersion = 1

// Marshal encodes plan as indented JSON, stamping the current version.
func Marshal(plan *crafting.CraftingPlan) ([]byte, error) {
	if plan == nil {
		return nil, errors.New("marshal plan: plan is nil")
	}
	out := *plan
	out.Version = CurrentVersion
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a plan. It rejects versions newer than CurrentVersion
// and invalid acquisition sources, assigns IDs to nodes that lack one,
// restores parent references from the tree structure and rebuilds the
// aggregated materials, which are not stored.
func Unmarshal(data []byte) (*crafting.CraftingPlan, error) {
	var plan crafting.CraftingPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}

	// files written before versioning carry no version field
	if plan.Version == 0 {
		plan.Version = CurrentVersion
	}
	if plan.Version > CurrentVersion || plan.Version < 0 {
		return nil, &crafting.ErrUnsupportedPlanVersion{Version: plan.Version}
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}

	for _, root := range plan.RootItems {
		if err := restoreNode(root, ""); err != nil {
			return nil, err
		}
	}
	plan.AggregatedMaterials = engine.AggregateMaterials(&plan)
	return &plan, nil
}

func restoreNode(n *crafting.PlanNode, parentID string) error {
	if n == nil {
		return errors.New("unmarshal plan: null node")
	}
	if !n.Source.IsValid() {
		return fmt.Errorf("unmarshal plan: node %s has invalid source %d", n.NodeID, n.Source)
	}
	if n.NodeID == "" {
		n.NodeID = uuid.NewString()
	}
	if n.Yield < 1 {
		n.Yield = 1
	}
	n.ParentNodeID = parentID
	for _, c := range n.Children {
		if err := restoreNode(c, n.NodeID); err != nil {
			return err
		}
	}
	return nil
}

// Save writes plan to path atomically.
func Save(path string, plan *crafting.CraftingPlan) error {
	data, err := Marshal(plan)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".plan-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing plan file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming plan file: %w", err)
	}
	return nil
}

// Load reads the plan stored at path.
func Load(path string) (*crafting.CraftingPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Unmarshal(data)
}
