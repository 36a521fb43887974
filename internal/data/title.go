package data

import (
	"encoding/json"
	"errors"
	"io"
	"time"
)

// Title is a catalog entry managed by a game source.
//
// UpdateAvailable is only meaningful when Status is StatusInstalled. The
// download lifecycle of a title is not stored here; the lifecycle manager
// owns the live handle and the catalog keeps the last stable state.
type Title struct {
	ID              string          `json:"id"`
	InternalName    string          `json:"internalName"`
	Name            string          `json:"name"`
	Version         string          `json:"version"`
	Size            int64           `json:"size"`
	Status          InstalledStatus `json:"status"`
	UpdateAvailable bool            `json:"updateAvailable"`
	FromOrigin      bool            `json:"fromOrigin"`
	IsRunning       bool            `json:"isRunning"`
	InstallPath     string          `json:"installPath,omitempty"`
	Source          string          `json:"source"`
	Variant         Variant         `json:"-"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Variant carries source specific fields of a title. Each source defines its
// own concrete type and validates it with a type assertion at the plugin
// boundary.
type Variant interface {
	SourceSlug() string
}

// VariantDecoder rebuilds a source's Variant from its persisted JSON form.
type VariantDecoder func(raw json.RawMessage) (Variant, error)

type InstalledStatus string

const (
	StatusNotInstalled InstalledStatus = "NotInstalled"
	StatusInstalled    InstalledStatus = "Installed"
)

// OperationKind is the kind of long-running backend operation attached to a title.
type OperationKind string

const (
	KindInstall OperationKind = "Install"
	KindUpdate  OperationKind = "Update"
	KindMove    OperationKind = "Move"
	KindRepair  OperationKind = "Repair"
)

// Pausable reports whether operations of this kind support pause and resume.
func (k OperationKind) Pausable() bool {
	return k == KindInstall || k == KindUpdate
}

type Titles []*Title

var (
	ErrNotFound            = errors.New("title not found")
	ErrInvalidTitleVariant = errors.New("invalid title variant")
	ErrInvalidID           = errors.New("title id is required")
)

// Installed reports whether the title is installed.
func (t *Title) Installed() bool { return t.Status == StatusInstalled }

// HasUpdate reports an available update, honouring that the flag only counts
// for installed titles.
func (t *Title) HasUpdate() bool { return t.Installed() && t.UpdateAvailable }

// Clone returns a copy of the title. Variants are treated as immutable values
// and shared between copies.
func (t *Title) Clone() *Title {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (ts Titles) Clone() Titles {
	out := make(Titles, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}

func (ts *Titles) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(ts) }

func (t *Title) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(t) }
