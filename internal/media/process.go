package media

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	mediaDatamodel "github.com/frahmantamala/fitness-content/internal/core/datamodel/media"
	"github.com/frahmantamala/fitness-content/internal/core/owner"
)

// InstructionsPointer is where media instructions live in a request document.
const InstructionsPointer = "/meta/files"

// step is an instruction that passed validation.
type step struct {
	action  string
	payload *payload
	target  *mediaDatamodel.Media
	name    string
}

// Process applies media instructions to ref. Every instruction is validated, and every
// upload read and checked, before the first change is made.
func (s *Service) Process(ctx context.Context, ref owner.Ref, coll Collection, instructions []Instruction, opts Options) ([]*mediaDatamodel.Media, error) {
	if len(instructions) == 0 {
		return nil, nil
	}

	steps, err := s.plan(ctx, ref, coll, instructions)
	if err != nil {
		return nil, err
	}

	var out []*mediaDatamodel.Media
	for _, st := range steps {
		switch st.action {
		case ActionStore:
			if coll.Single {
				if err := s.ClearCollection(ctx, ref, coll.Name); err != nil {
					return out, err
				}
			}
			o := opts
			o.Name = st.name
			m, err := s.attach(ctx, ref, coll, st.payload, o)
			if err != nil {
				return out, err
			}
			out = append(out, m)
		case ActionUpdate:
			m, err := s.rename(ctx, st.target, st.name)
			if err != nil {
				return out, err
			}
			out = append(out, m)
		case ActionDelete:
			if err := s.remove(ctx, st.target); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// Validate runs the checks of Process without changing anything. Owners that do not exist
// yet pass a zero id; update and delete instructions then fail.
func (s *Service) Validate(ctx context.Context, ref owner.Ref, coll Collection, instructions []Instruction) error {
	if len(instructions) == 0 {
		return nil
	}
	_, err := s.plan(ctx, ref, coll, instructions)
	return err
}

func (s *Service) plan(ctx context.Context, ref owner.Ref, coll Collection, instructions []Instruction) ([]step, error) {
	steps := make([]step, 0, len(instructions))
	var errs []internal.ValidationError

	for i, in := range instructions {
		pointer := fmt.Sprintf("%s/%d", InstructionsPointer, i)
		action := strings.ToLower(strings.TrimSpace(in.Action))

		switch action {
		case ActionStore:
			src := Source{FileName: in.FileName, Base64: in.Content}
			if in.File != nil {
				fs, err := SourceFromFile(in.File)
				if err != nil {
					return nil, err
				}
				if src.FileName == "" {
					src.FileName = in.File.Filename
				}
				src.Reader = fs.Reader
			}
			if src.Reader == nil && (in.Content == "" || in.FileName == "") {
				errs = append(errs, *fileError(pointer, "REQUIRED", "A file or a base64 payload with a filename is required."))
				continue
			}
			p, verr := read(src, coll, s.cfg.MaxUploadSize, pointer)
			if verr != nil {
				errs = append(errs, *verr)
				continue
			}
			steps = append(steps, step{action: action, payload: p, name: in.Name})

		case ActionUpdate, ActionDelete:
			if in.ID == 0 {
				errs = append(errs, *fileError(pointer+"/id", "REQUIRED", "The %s field is required.", "id"))
				continue
			}
			m, err := s.repo.FindForOwner(ctx, ref, coll.Name, uint(in.ID))
			if err != nil {
				return nil, internal.NewInternalError("failed to load media", err)
			}
			if m == nil {
				errs = append(errs, *fileError(pointer+"/id", "EXISTS", "The media id must reference an attachment of this resource."))
				continue
			}
			if action == ActionUpdate && strings.TrimSpace(in.Name) == "" {
				errs = append(errs, *fileError(pointer+"/name", "REQUIRED", "The %s field is required.", "name"))
				continue
			}
			if action == ActionUpdate && renamed(in.Name, m.FileName) == "" {
				errs = append(errs, *fileError(pointer+"/name", "INVALID", "The %s is invalid.", "name"))
				continue
			}
			steps = append(steps, step{action: action, target: m, name: strings.TrimSpace(in.Name)})

		default:
			return nil, invalidAction(pointer + "/action")
		}
	}

	if len(errs) > 0 {
		return nil, internal.NewUnprocessableError(errs)
	}
	return steps, nil
}

func invalidAction(pointer string) *internal.AppError {
	return &internal.AppError{
		Type:       internal.ErrorTypeValidation,
		Code:       internal.ErrCodeInvalidAction,
		Message:    "The selected action is invalid.",
		StatusCode: http.StatusBadRequest,
		Details: internal.ValidationErrors{Errors: []internal.ValidationError{{
			Field:   "action",
			Message: "The selected action is invalid.",
			Code:    string(internal.ErrCodeInvalidAction),
			Pointer: pointer,
		}}},
	}
}
