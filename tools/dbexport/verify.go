package main

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/datastore"
)

// Verifier performs post-migration verification.
type Verifier struct {
	sourceDB *gorm.DB
	targetDB *gorm.DB
}

// NewVerifier creates a new Verifier.
func NewVerifier(sourceDB, targetDB *gorm.DB) *Verifier {
	return &Verifier{
		sourceDB: sourceDB,
		targetDB: targetDB,
	}
}

// Verify performs all verification checks.
func (v *Verifier) Verify() error {
	// Count verification
	if err := v.verifyCounts(); err != nil {
		return fmt.Errorf("count verification failed: %w", err)
	}

	// Sample verification
	if err := v.verifySamples(); err != nil {
		return fmt.Errorf("sample verification failed: %w", err)
	}

	return nil
}

// verifyCounts compares record counts between source and target.
func (v *Verifier) verifyCounts() error {
	fmt.Println("\nVerifying record counts...")

	tables := []struct {
		name  string
		model any
	}{
		{"projects", &datastore.Project{}},
		{"notes", &datastore.Note{}},
		{"replies", &datastore.Reply{}},
	}

	allMatch := true
	fmt.Printf("%-25s %12s %12s %8s\n", "Table", "Source", "Target", "Match")

	for _, t := range tables {
		var sourceCount, targetCount int64

		if err := v.sourceDB.Model(t.model).Count(&sourceCount).Error; err != nil {
			return fmt.Errorf("failed to count source %s: %w", t.name, err)
		}

		if err := v.targetDB.Model(t.model).Count(&targetCount).Error; err != nil {
			return fmt.Errorf("failed to count target %s: %w", t.name, err)
		}

		match := "✓"
		if sourceCount != targetCount {
			match = "✗"
			allMatch = false
		}

		fmt.Printf("%-25s %12d %12d %8s\n", t.name, sourceCount, targetCount, match)
	}

	if !allMatch {
		return fmt.Errorf("record counts do not match")
	}

	fmt.Println("\nAll counts match!")
	return nil
}

// verifySamples verifies random samples from the migrated tables.
func (v *Verifier) verifySamples() error {
	fmt.Println("\nVerifying sample records...")

	// Sample notes (most critical table)
	if err := v.sampleNotes(5); err != nil {
		return fmt.Errorf("notes sampling failed: %w", err)
	}

	// Sample replies
	if err := v.sampleReplies(5); err != nil {
		return fmt.Errorf("replies sampling failed: %w", err)
	}

	fmt.Println("Sample verification passed!")
	return nil
}

// sampleNotes verifies random note records.
func (v *Verifier) sampleNotes(count int) error {
	// Get random records from source
	var sourceNotes []datastore.Note
	if err := v.sourceDB.Order("RANDOM()").Limit(count).Find(&sourceNotes).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}

	if len(sourceNotes) == 0 {
		fmt.Println("  notes: no records to sample")
		return nil
	}

	// Verify each in target using index to avoid copying large struct
	for i := range sourceNotes {
		src := &sourceNotes[i]
		var target datastore.Note
		// String primary key, a bare First(&target, id) would misparse it
		if err := v.targetDB.Where("id = ?", src.ID).First(&target).Error; err != nil {
			return fmt.Errorf("note %s not found in target: %w", src.ID, err)
		}

		// Verify critical fields
		if src.ProjectName != target.ProjectName {
			return fmt.Errorf("note %s: ProjectName mismatch (%s vs %s)",
				src.ID, src.ProjectName, target.ProjectName)
		}
		if src.FilePath != target.FilePath {
			return fmt.Errorf("note %s: FilePath mismatch (%s vs %s)",
				src.ID, src.FilePath, target.FilePath)
		}
		if src.LineNumber != target.LineNumber {
			return fmt.Errorf("note %s: LineNumber mismatch (%d vs %d)",
				src.ID, src.LineNumber, target.LineNumber)
		}
		if src.Comment != target.Comment {
			return fmt.Errorf("note %s: Comment mismatch (%s vs %s)",
				src.ID, src.Comment, target.Comment)
		}
		if src.State != target.State {
			return fmt.Errorf("note %s: State mismatch (%s vs %s)",
				src.ID, src.State, target.State)
		}
		// Drivers differ in timezone normalization, compare instants
		if src.Timestamp.Unix() != target.Timestamp.Unix() {
			return fmt.Errorf("note %s: Timestamp mismatch (%s vs %s)",
				src.ID, src.Timestamp, target.Timestamp)
		}
	}

	fmt.Printf("  notes: %d samples verified\n", len(sourceNotes))
	return nil
}

// sampleReplies verifies random reply records.
func (v *Verifier) sampleReplies(count int) error {
	// Get random records from source
	var sourceReplies []datastore.Reply
	if err := v.sourceDB.Order("RANDOM()").Limit(count).Find(&sourceReplies).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}

	if len(sourceReplies) == 0 {
		fmt.Println("  replies: no records to sample")
		return nil
	}

	// Verify each in target
	for i := range sourceReplies {
		src := &sourceReplies[i]
		var target datastore.Reply
		if err := v.targetDB.Where("id = ?", src.ID).First(&target).Error; err != nil {
			return fmt.Errorf("reply %s not found in target: %w", src.ID, err)
		}

		// Verify critical fields
		if src.ParentID != target.ParentID {
			return fmt.Errorf("reply %s: ParentID mismatch (%s vs %s)",
				src.ID, src.ParentID, target.ParentID)
		}
		if src.Author != target.Author {
			return fmt.Errorf("reply %s: Author mismatch (%s vs %s)",
				src.ID, src.Author, target.Author)
		}
		if src.Comment != target.Comment {
			return fmt.Errorf("reply %s: Comment mismatch (%s vs %s)",
				src.ID, src.Comment, target.Comment)
		}
	}

	fmt.Printf("  replies: %d samples verified\n", len(sourceReplies))
	return nil
}
