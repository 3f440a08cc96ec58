package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"submission-intake/internal/submission"
	"submission-intake/internal/upload"
)

// handleList answers GET /api with every stored submission.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	subs, err := s.submissions.All(r.Context())
	if err != nil {
		s.log(r.Context()).WithError(err).Error("list submissions")
		writeJSON(w, http.StatusBadRequest, envelope{Error: "Error: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: subs})
}

// handleCreate answers POST /api. The file is relocated before the record
// is validated and stored; a rejected record leaves its file behind.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.log(ctx)

	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	var res *upload.Result
	err := s.step(ctx, "upload.receive", func(ctx context.Context) error {
		var err error
		res, err = s.receiver.Receive(ctx, r)
		return err
	})
	if err != nil {
		s.ingestionFailed(w, r, err)
		return
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			log.WithError(err).Warn("remove transient upload")
		}
	}()

	file, err := res.File("file")
	if err != nil {
		s.ingestionFailed(w, r, err)
		return
	}

	var stored string
	err = s.step(ctx, "upload.relocate", func(ctx context.Context) error {
		var err error
		stored, err = s.relocator.Relocate(ctx, file.Path, file.Filename)
		return err
	})
	if err != nil {
		s.ingestionFailed(w, r, err)
		return
	}
	s.metrics.observeUpload(file.Size)

	in, ignored := submission.InputFromFields(res.Fields, stored)
	if len(ignored) > 0 {
		log.WithField("fields", ignored).Debug("ignoring fields")
	}

	var sub *submission.Submission
	err = s.step(ctx, "submission.create", func(ctx context.Context) error {
		var err error
		sub, err = s.submissions.Create(ctx, in)
		return err
	})

	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		s.metrics.submissions.WithLabelValues(resultInvalid).Inc()
		log.WithFields(logrus.Fields{"filepath": stored, "errors": len(verr.Fields)}).
			Info("submission rejected, file kept")
		writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Error:  verr.Error(),
			Errors: verr.Fields,
		})
		return
	case err != nil:
		log.WithField("filepath", stored).Warn("submission not stored, file kept")
		s.ingestionFailed(w, r, err)
		return
	}

	s.metrics.submissions.WithLabelValues(resultCreated).Inc()
	log.WithFields(logrus.Fields{"id": sub.ID, "filepath": sub.Filepath, "type": sub.Type}).
		Info("submission stored")
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: sub})
}

func (s *Server) ingestionFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.metrics.submissions.WithLabelValues(resultFailed).Inc()
	s.log(r.Context()).WithError(err).Warn("submission failed")
	writeJSON(w, http.StatusBadRequest, envelope{Error: "Error: " + err.Error()})
}
