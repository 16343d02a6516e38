package directory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/datamodel/directory"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
	"github.com/frahmantamala/fitness-content/internal/media"
	"github.com/frahmantamala/fitness-content/internal/transport"
)

type RepositoryAPI interface {
	List(ctx context.Context, q transport.Query, parentID *uint) ([]directory.Directory, int64, error)
	FindByID(ctx context.Context, id uint) (*directory.Directory, error)
	Exists(ctx context.Context, id uint) (bool, error)
	Save(ctx context.Context, d *directory.Directory) error
	Delete(ctx context.Context, id uint) error
}

type MediaAPI interface {
	Validate(ctx context.Context, ref owner.Ref, coll media.Collection, instructions []media.Instruction) error
	Process(ctx context.Context, ref owner.Ref, coll media.Collection, instructions []media.Instruction, opts media.Options) ([]*mediaDatamodel.Media, error)
	ClearOwner(ctx context.Context, ref owner.Ref) error
}

type Service struct {
	repo   RepositoryAPI
	media  MediaAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, mediaSvc MediaAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, media: mediaSvc, logger: logger}
}

func (s *Service) List(ctx context.Context, q transport.Query) ([]*Directory, int64, error) {
	return s.list(ctx, q, nil)
}

// Children pages the direct children of id.
func (s *Service) Children(ctx context.Context, id uint, q transport.Query) ([]*Directory, int64, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, q, &id)
}

func (s *Service) list(ctx context.Context, q transport.Query, parentID *uint) ([]*Directory, int64, error) {
	rows, total, err := s.repo.List(ctx, q, parentID)
	if err != nil {
		return nil, 0, internal.NewInternalError("failed to list directories", err)
	}
	out := make([]*Directory, 0, len(rows))
	for i := range rows {
		out = append(out, FromDataModel(&rows[i]))
	}
	return out, total, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Directory, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load directory", err)
	}
	if d == nil {
		return nil, internal.ErrNotFound
	}
	return FromDataModel(d), nil
}

func (s *Service) Exists(ctx context.Context, id uint) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Parent returns the parent of id, nil at the root.
func (s *Service) Parent(ctx context.Context, id uint) (*Directory, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.ParentID == nil {
		return nil, nil
	}
	return s.Get(ctx, *d.ParentID)
}

// Path joins the names from the root down to id: "Programs/Strength".
func (s *Service) Path(ctx context.Context, id uint) (string, error) {
	chain, err := s.ancestry(ctx, id)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		seg := media.SanitizeFileName(strings.ReplaceAll(chain[i].Name, "/", "-"))
		if seg == "" {
			continue
		}
		names = append(names, seg)
	}
	return path.Join(names...), nil
}

// FileProperties are stored on every file of the directory so bundles keep the tree layout.
func (s *Service) FileProperties(ctx context.Context, id uint) (map[string]any, error) {
	p, err := s.Path(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{mediaDatamodel.PropZipPrefix: p}, nil
}

// ancestry returns id followed by its ancestors up to the root.
func (s *Service) ancestry(ctx context.Context, id uint) ([]directory.Directory, error) {
	var chain []directory.Directory
	next := &id
	for next != nil && len(chain) < maxDepth {
		d, err := s.repo.FindByID(ctx, *next)
		if err != nil {
			return nil, internal.NewInternalError("failed to load directory", err)
		}
		if d == nil {
			break
		}
		chain = append(chain, *d)
		next = d.ParentID
	}
	return chain, nil
}

// Create validates the parent and the embedded files before writing anything, saves the
// directory and then runs the file instructions against it.
func (s *Service) Create(ctx context.Context, in Input) (*Directory, error) {
	if err := s.check(ctx, 0, in); err != nil {
		return nil, err
	}

	row := &directory.Directory{}
	if in.Name != nil {
		row.Name = strings.TrimSpace(*in.Name)
	}
	row.ParentID = in.ParentID
	if err := s.save(ctx, row); err != nil {
		return nil, err
	}
	if err := s.processFiles(ctx, row.ID, in.Files); err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*Directory, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load directory", err)
	}
	if row == nil {
		return nil, internal.ErrNotFound
	}
	if err := s.check(ctx, id, in); err != nil {
		return nil, err
	}

	if in.Name != nil {
		row.Name = strings.TrimSpace(*in.Name)
	}
	if in.ParentSet {
		row.ParentID = in.ParentID
	}
	if err := s.save(ctx, row); err != nil {
		return nil, err
	}
	if err := s.processFiles(ctx, row.ID, in.Files); err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

// SetParent moves id under parentID, or to the root when parentID is nil.
func (s *Service) SetParent(ctx context.Context, id uint, parentID *uint) (*Directory, error) {
	return s.Update(ctx, id, Input{ParentSet: true, ParentID: parentID})
}

func (s *Service) save(ctx context.Context, row *directory.Directory) error {
	err := s.repo.Save(ctx, row)
	if errors.Is(err, ErrParentMissing) {
		return parentError()
	}
	if err != nil {
		return internal.NewInternalError("failed to save directory", err)
	}
	return nil
}

func (s *Service) processFiles(ctx context.Context, id uint, instructions []media.Instruction) error {
	if len(instructions) == 0 {
		return nil
	}
	props, err := s.FileProperties(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.media.Process(ctx, owner.NewRef(owner.Directories, id), Files, instructions, media.Options{Properties: props})
	return err
}

// check rejects a parent that does not exist, is the directory itself or sits below it.
func (s *Service) check(ctx context.Context, id uint, in Input) error {
	var errs []internal.ValidationError

	if in.ParentID != nil {
		ok, err := s.validParent(ctx, id, *in.ParentID)
		if err != nil {
			return err
		}
		if !ok {
			appErr, _ := internal.IsAppError(parentError())
			errs = append(errs, appErr.FieldErrors()...)
		}
	}

	if len(in.Files) > 0 {
		if err := s.media.Validate(ctx, owner.NewRef(owner.Directories, id), Files, in.Files); err != nil {
			appErr, ok := internal.IsAppError(err)
			if !ok || appErr.StatusCode != http.StatusUnprocessableEntity {
				return err
			}
			errs = append(errs, appErr.FieldErrors()...)
		}
	}

	if len(errs) > 0 {
		return internal.NewUnprocessableError(errs)
	}
	return nil
}

func (s *Service) validParent(ctx context.Context, id, parentID uint) (bool, error) {
	if id != 0 && parentID == id {
		return false, nil
	}
	chain, err := s.ancestry(ctx, parentID)
	if err != nil {
		return false, err
	}
	if len(chain) == 0 {
		return false, nil
	}
	if id == 0 {
		return true, nil
	}
	return !slices.ContainsFunc(chain, func(d directory.Directory) bool { return d.ID == id }), nil
}

// Delete removes the files of the directory, detaches its children and drops the row.
func (s *Service) Delete(ctx context.Context, id uint) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.media.ClearOwner(ctx, d.Ref()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "directory delete failed", "id", id, "error", err)
		return internal.NewDeleteFailedError(err)
	}
	return nil
}
