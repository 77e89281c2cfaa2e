package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reicrm/internal/store"
)

// ErrInvalidUpdate wraps validation failures of a property update
var ErrInvalidUpdate = errors.New("invalid property update")

// ContactChanges lists contact edits submitted with a property update
type ContactChanges struct {
	Create []store.Contact `json:"create"`
	Update []store.Contact `json:"update"`
	Delete []int64         `json:"delete"`
}

// NoteChanges lists note edits submitted with a property update
type NoteChanges struct {
	Create []string     `json:"create"`
	Update []store.Note `json:"update"`
	Delete []int64      `json:"delete"`
}

// PropertyUpdate is a combined edit of a property, its owners' contacts and
// its notes
type PropertyUpdate struct {
	Property store.PropertyPatch `json:"property"`
	Contacts ContactChanges      `json:"contacts"`
	Notes    NoteChanges         `json:"notes"`
}

// PropertyEditor applies combined property edits atomically
type PropertyEditor struct {
	store  store.Store
	logger *zap.Logger
}

// NewPropertyEditor creates an editor over a store
func NewPropertyEditor(s store.Store, logger *zap.Logger) *PropertyEditor {
	return &PropertyEditor{store: s, logger: logger}
}

// UpdateProperty applies contact edits, note edits and the property field
// update in one transaction. Any failure rolls back the whole edit.
func (e *PropertyEditor) UpdateProperty(ctx context.Context, propertyID int64, upd PropertyUpdate) (*store.Property, error) {
	if err := validateContacts(upd.Contacts); err != nil {
		return nil, err
	}

	var result *store.Property
	err := e.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetProperty(ctx, propertyID); err != nil {
			return fmt.Errorf("property %d: %w", propertyID, err)
		}

		for i := range upd.Contacts.Create {
			if err := tx.CreateContact(ctx, &upd.Contacts.Create[i]); err != nil {
				return err
			}
		}
		for i := range upd.Contacts.Update {
			if err := tx.UpdateContact(ctx, &upd.Contacts.Update[i]); err != nil {
				return err
			}
		}
		for _, id := range upd.Contacts.Delete {
			if err := tx.DeleteContact(ctx, id); err != nil {
				return err
			}
		}

		for _, content := range upd.Notes.Create {
			if err := tx.CreateNote(ctx, &store.Note{PropertyID: propertyID, Content: content}); err != nil {
				return err
			}
		}
		for i := range upd.Notes.Update {
			if err := tx.UpdateNote(ctx, &upd.Notes.Update[i]); err != nil {
				return err
			}
		}
		for _, id := range upd.Notes.Delete {
			if err := tx.DeleteNote(ctx, id); err != nil {
				return err
			}
		}

		updated, err := tx.UpdateProperty(ctx, propertyID, upd.Property)
		if err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		e.logger.Warn("property update rolled back",
			zap.Int64("property_id", propertyID),
			zap.Error(err))
		return nil, err
	}

	return result, nil
}

func validateContacts(changes ContactChanges) error {
	check := func(c store.Contact) error {
		if isBlank(c.Phone) && isBlank(c.Email) {
			return fmt.Errorf("%w: contact needs a phone or email", ErrInvalidUpdate)
		}
		if c.Label != nil && !validLabel(*c.Label) {
			return fmt.Errorf("%w: unknown contact label %q", ErrInvalidUpdate, *c.Label)
		}
		return nil
	}

	for _, c := range changes.Create {
		if c.OwnerID == 0 {
			return fmt.Errorf("%w: new contact needs an owner", ErrInvalidUpdate)
		}
		if err := check(c); err != nil {
			return err
		}
	}
	for _, c := range changes.Update {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

func validLabel(label string) bool {
	for _, l := range store.ContactLabels {
		if l == label {
			return true
		}
	}
	return false
}
