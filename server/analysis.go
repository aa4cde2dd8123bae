package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/agriops/cache"
	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/generate"
	"github.com/jonwraymond/agriops/inference"
	"github.com/jonwraymond/agriops/observe"
)

// AnalysisResponse is the body of the soil and disease endpoints.
type AnalysisResponse struct {
	Status        string  `json:"status"`
	Result        string  `json:"result"`
	ExecutionTime float64 `json:"execution_time"`
}

// SoilRequest is a soil test. Required readings are pointers so that a
// missing field is told apart from zero.
type SoilRequest struct {
	PH            *float64 `json:"ph" validate:"required,gte=0,lte=14"`
	Nitrogen      *float64 `json:"nitrogen" validate:"required,gte=0"`
	Phosphorus    *float64 `json:"phosphorus" validate:"required,gte=0"`
	Potassium     *float64 `json:"potassium" validate:"required,gte=0"`
	OrganicMatter *float64 `json:"organic_matter" validate:"omitempty,gte=0,lte=100"`
	Moisture      *float64 `json:"moisture" validate:"omitempty,gte=0,lte=100"`
}

// fields returns every reading, absent optionals as nil.
func (req SoilRequest) fields() map[string]any {
	return map[string]any{
		"ph":             *req.PH,
		"nitrogen":       *req.Nitrogen,
		"phosphorus":     *req.Phosphorus,
		"potassium":      *req.Potassium,
		"organic_matter": optional(req.OrganicMatter),
		"moisture":       optional(req.Moisture),
	}
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (req SoilRequest) sample() generate.SoilSample {
	return generate.SoilSample{
		PH:            *req.PH,
		Nitrogen:      *req.Nitrogen,
		Phosphorus:    *req.Phosphorus,
		Potassium:     *req.Potassium,
		OrganicMatter: req.OrganicMatter,
		Moisture:      req.Moisture,
	}
}

func (req SoilRequest) features() inference.SoilFeatures {
	f := inference.SoilFeatures{
		PH:         *req.PH,
		Nitrogen:   *req.Nitrogen,
		Phosphorus: *req.Phosphorus,
		Potassium:  *req.Potassium,
	}
	if req.OrganicMatter != nil {
		f.OrganicMatter = *req.OrganicMatter
	}
	if req.Moisture != nil {
		f.Moisture = *req.Moisture
	}
	return f
}

func (s *Server) handleSoil(w http.ResponseWriter, r *http.Request) {
	const op = "server.soil"
	start := s.now()

	var req SoilRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, fault.Wrap(fault.KindValidation, op, "Invalid JSON body", err))
		return
	}
	if err := s.validateStruct(op, req); err != nil {
		s.writeError(w, r, err)
		return
	}

	key, err := cache.FieldsKey(cache.NamespaceSoil, req.fields())
	if err != nil {
		s.writeError(w, r, fault.Internal(op, err))
		return
	}

	res, err := s.cache.Fetch(r.Context(), key, cache.ForeverPolicy(), func(ctx context.Context) ([]byte, error) {
		s.logger.Info(ctx, "processing soil analysis", observe.F("cache_key", key))
		text, err := s.generator.Generate(ctx, generate.SoilPrompt(req.sample(), s.soilAssessment(ctx, req)), generate.SoilOptions)
		if err != nil {
			return nil, err
		}
		return json.Marshal(text)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeAnalysis(w, r, op, res, start)
}

// soilAssessment asks the soil model for a verdict. The analysis goes ahead
// without one when the model is unset or failing.
func (s *Server) soilAssessment(ctx context.Context, req SoilRequest) string {
	if !s.soil.Configured() {
		return ""
	}
	label, err := s.soil.Assess(ctx, req.features())
	if err != nil {
		s.logger.Warn(ctx, "soil model unavailable, continuing without assessment",
			observe.F("error", err.Error()),
			observe.F("error.kind", fault.KindOf(err).String()),
		)
		return ""
	}
	return inference.Assessment(label)
}

func (s *Server) handleDisease(w http.ResponseWriter, r *http.Request) {
	const op = "server.disease"
	start := s.now()

	data, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key := cache.ContentKey(cache.NamespaceDisease, data)
	res, err := s.cache.Fetch(r.Context(), key, cache.ForeverPolicy(), func(ctx context.Context) ([]byte, error) {
		preds, err := s.images.Classify(ctx, data)
		if err != nil {
			return nil, err
		}
		detections := inference.FormatPredictions(preds)
		s.logger.Info(ctx, "image classified", observe.F("detections", detections), observe.F("cache_key", key))

		interpretation, err := s.generator.Generate(ctx, generate.InterpretationPrompt(detections), generate.InterpretationOptions)
		if err != nil {
			return nil, err
		}
		return json.Marshal("Detection results: " + detections + "\n\nInterpretation: " + interpretation)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeAnalysis(w, r, op, res, start)
}

func (s *Server) writeAnalysis(w http.ResponseWriter, r *http.Request, op string, res cache.Result, start time.Time) {
	var text string
	if err := json.Unmarshal(res.Value, &text); err != nil {
		s.writeError(w, r, fault.Internal(op, err))
		return
	}
	if res.Hit {
		s.logger.Debug(r.Context(), "served from cache", observe.F("op", op))
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{Status: "success", Result: text, ExecutionTime: s.elapsed(start)})
}

// readUpload returns the bytes of the named multipart file. The part must
// declare an image content type and fit within MaxUploadBytes.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, error) {
	const op = "server.upload"

	limit := s.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	// Room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, op, "Expected a multipart form upload", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fault.Validation(op, field+": field required")
		}
		if err != nil {
			return nil, uploadError(op, err)
		}
		if part.FormName() != field {
			_ = part.Close()
			continue
		}
		return readImagePart(op, part, limit)
	}
}

func readImagePart(op string, part *multipart.Part, limit int64) ([]byte, error) {
	defer func() { _ = part.Close() }()

	if !strings.HasPrefix(part.Header.Get("Content-Type"), "image/") {
		return nil, fault.BadUpload(op, "File must be an image", nil)
	}
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return nil, uploadError(op, err)
	}
	if int64(len(data)) > limit {
		return nil, fault.BadUpload(op, "File too large", nil)
	}
	if len(data) == 0 {
		return nil, fault.BadUpload(op, "Empty image file", nil)
	}
	return data, nil
}

func uploadError(op string, err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fault.BadUpload(op, "File too large", err)
	}
	return fault.BadUpload(op, "Malformed upload", err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
