package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/docuflow/docuflow/internal/domain/errs"
)

func TestStaticDirectory_ResolveRole(t *testing.T) {
	d := NewStaticDirectory(map[string]string{
		"org-1/approver": "user-42",
		"org-2/approver": "user-99",
	})

	t.Run("resolves role scoped to organization", func(t *testing.T) {
		userID, err := d.ResolveRole(context.Background(), "org-1", "approver")
		if err != nil {
			t.Fatalf("ResolveRole() error = %v", err)
		}
		if userID != "user-42" {
			t.Errorf("ResolveRole() = %q, want %q", userID, "user-42")
		}
	})

	t.Run("unassigned role returns not found", func(t *testing.T) {
		_, err := d.ResolveRole(context.Background(), "org-1", "auditor")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("ResolveRole() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("role in another organization is not visible", func(t *testing.T) {
		_, err := d.ResolveRole(context.Background(), "org-3", "approver")
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("ResolveRole() error = %v, want ErrNotFound", err)
		}
	})
}

func TestNewStaticDirectory_NilAssignments(t *testing.T) {
	d := NewStaticDirectory(nil)
	if _, err := d.ResolveRole(context.Background(), "org-1", "approver"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("ResolveRole() on empty directory error = %v, want ErrNotFound", err)
	}
}
