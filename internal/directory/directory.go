// Package directory is a file cabinet: a tree of folders that hold uploaded files.
package directory

import (
	"errors"
	"time"

	"github.com/frahmantamala/fitness-content/internal/core/datamodel/directory"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/media"
)

const (
	ResourceType = "directories"
	ParentRel    = "parent"
	ChildrenRel  = "children"
	// maxDepth bounds parent walks so a corrupted tree cannot loop forever.
	maxDepth = 64
)

// Files is the attachment collection of every directory.
var Files = media.Collection{Name: "files"}

// ErrParentMissing is returned by repositories when the parent vanished during a save.
var ErrParentMissing = errors.New("parent directory does not exist")

type Directory struct {
	ID        uint
	Name      string
	ParentID  *uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

func FromDataModel(d *directory.Directory) *Directory {
	if d == nil {
		return nil
	}
	return &Directory{
		ID:        d.ID,
		Name:      d.Name,
		ParentID:  d.ParentID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (d *Directory) Ref() owner.Ref {
	return owner.NewRef(owner.Directories, d.ID)
}
