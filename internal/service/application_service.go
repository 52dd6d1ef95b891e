package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scholarhub/internal/inflight"
	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/notifications"
	"scholarhub/internal/observability"
	"scholarhub/internal/repository"
	"scholarhub/internal/validation"
	"scholarhub/internal/workflow"

	"github.com/google/uuid"
)

const maxFeedbackLen = 2000

type ApplicationService struct {
	apps         repository.ApplicationRepository
	scholarships repository.ScholarshipRepository
	locks        Locker
	notifier     Publisher
	now          func() time.Time
}

// ApplyInput is the application form a student submits.
type ApplyInput struct {
	ScholarshipID       uint   `json:"scholarshipId" validate:"required"`
	Phone               string `json:"phone" validate:"required,max=30"`
	Photo               string `json:"photo" validate:"omitempty,max=512"`
	Address             string `json:"address" validate:"required,max=255"`
	Gender              string `json:"gender" validate:"required,oneof=male female other"`
	Degree              string `json:"degree" validate:"omitempty,oneof=Diploma Bachelor Masters PhD"`
	ScholarshipCategory string `json:"scholarshipCategory" validate:"omitempty,oneof='Full fund' 'Partial fund' 'Self fund'"`
	SSCResult           string `json:"sscResult" validate:"required,max=20"`
	HSCResult           string `json:"hscResult" validate:"required,max=20"`
	StudyGap            string `json:"studyGap" validate:"omitempty,max=20"`
}

// EditApplicationInput carries the fields a student may change while the
// application is pending. Empty fields are left as they are.
type EditApplicationInput struct {
	Degree              string `json:"degree" validate:"omitempty,oneof=Diploma Bachelor Masters PhD"`
	ScholarshipCategory string `json:"scholarshipCategory" validate:"omitempty,oneof='Full fund' 'Partial fund' 'Self fund'"`
	Phone               string `json:"phone" validate:"omitempty,max=30"`
	Photo               string `json:"photo" validate:"omitempty,max=512"`
	Address             string `json:"address" validate:"omitempty,max=255"`
	Gender              string `json:"gender" validate:"omitempty,oneof=male female other"`
	SSCResult           string `json:"sscResult" validate:"omitempty,max=20"`
	HSCResult           string `json:"hscResult" validate:"omitempty,max=20"`
	StudyGap            string `json:"studyGap" validate:"omitempty,max=20"`
}

// ModerateInput is the moderator's decision form.
type ModerateInput struct {
	Action     string `json:"action"`
	Feedback   string `json:"feedback"`
	TrackingID string `json:"trackingId"`
}

// ListApplicationsInput filters a listing. Students only ever see their own.
type ListApplicationsInput struct {
	Email   string
	Status  string
	Payment string
	SortBy  string
	Limit   int
	Offset  int
}

// Timeline is what the public tracking page shows.
type Timeline struct {
	TrackingID        string                     `json:"trackingId"`
	ScholarshipName   string                     `json:"scholarshipName"`
	UniversityName    string                     `json:"universityName"`
	ApplicationStatus workflow.ApplicationStatus `json:"applicationStatus"`
	PaymentStatus     workflow.PaymentStatus     `json:"paymentStatus"`
	Events            []models.TrackingEvent     `json:"events"`
}

func NewApplicationService(
	apps repository.ApplicationRepository,
	scholarships repository.ScholarshipRepository,
	locks Locker,
	notifier Publisher,
) *ApplicationService {
	return &ApplicationService{
		apps:         apps,
		scholarships: scholarships,
		locks:        locks,
		notifier:     orNop(notifier),
		now:          utcNow,
	}
}

// Apply creates a pending application and its first timeline event. A
// student holds at most one pending or approved application per
// scholarship; a rejected one does not count.
func (s *ApplicationService) Apply(ctx context.Context, caller Caller, in ApplyInput) (app *models.Application, err error) {
	ctx, span := observability.StartTransitionSpan(ctx, string(workflow.ActionApply), 0)
	defer func() {
		observability.RecordTransition(string(workflow.ActionApply), err)
		span.End(err)
	}()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	res, err := workflow.Transition(workflow.State{}, workflow.Actor{Role: caller.Role, IsOwner: true}, workflow.ActionApply)
	if err != nil {
		return nil, workflowError(err)
	}

	release, err := acquire(ctx, s.locks, inflight.ApplyKey(caller.UserID, in.ScholarshipID))
	if err != nil {
		return nil, err
	}
	defer release()

	sch, err := s.scholarships.GetByID(ctx, in.ScholarshipID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !sch.IsOpen(now) {
		return nil, models.NewValidationError("The application deadline for this scholarship has passed")
	}

	existing, err := s.apps.FindActive(ctx, caller.UserID, sch.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &models.AppError{
			Code:    models.CodeConflict,
			Message: "You have already applied for this scholarship",
			Err:     fmt.Errorf("open application %s", existing.TrackingID),
		}
	}

	app = &models.Application{
		TrackingID:          uuid.NewString(),
		ScholarshipID:       sch.ID,
		UserID:              caller.UserID,
		UserName:            caller.Name,
		UserEmail:           caller.Email,
		ScholarshipName:     sch.Name,
		UniversityName:      sch.UniversityName,
		UniversityAddress:   joinNonEmpty(", ", sch.UniversityCity, sch.UniversityCountry),
		SubjectCategory:     sch.SubjectCategory,
		Degree:              firstNonEmpty(in.Degree, sch.Degree),
		ScholarshipCategory: firstNonEmpty(in.ScholarshipCategory, sch.ScholarshipCategory),
		ApplicationFees:     sch.ApplicationFees,
		ServiceCharge:       sch.ServiceCharge,
		ApplicationDeadline: sch.ApplicationDeadline,
		Phone:               strings.TrimSpace(in.Phone),
		Photo:               in.Photo,
		Address:             strings.TrimSpace(in.Address),
		Gender:              in.Gender,
		SSCResult:           in.SSCResult,
		HSCResult:           in.HSCResult,
		StudyGap:            in.StudyGap,
		ApplicationStatus:   res.Next.Application,
		PaymentStatus:       res.Next.Payment,
	}
	ev := &models.TrackingEvent{
		Status:    res.Event,
		Details:   "Application submitted for " + sch.Name,
		ActorID:   caller.UserID,
		CreatedAt: now,
	}
	if err := s.apps.CreateWithEvent(ctx, app, ev); err != nil {
		return nil, err
	}

	observability.LogTransition(ctx, observability.TransitionLog{
		ApplicationID: app.ID,
		TrackingID:    app.TrackingID,
		Action:        string(workflow.ActionApply),
		From:          "none",
		To:            stateLabel(res.Next),
		ActorID:       caller.UserID,
	})
	notify(ctx, "notify.application_created", s.notifier.PublishRole(ctx, workflow.RoleModerator, notifications.Event{
		Type: notifications.TypeApplicationCreated,
		Payload: map[string]any{
			"applicationId":   app.ID,
			"trackingId":      app.TrackingID,
			"scholarshipName": app.ScholarshipName,
			"userName":        app.UserName,
		},
	}))
	return app, nil
}

// Get returns one application to its owner or to staff.
func (s *ApplicationService) Get(ctx context.Context, caller Caller, id uint) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, app) {
		return nil, models.NewForbiddenError("You are not allowed to view this application")
	}
	return app, nil
}

// List returns applications visible to caller.
func (s *ApplicationService) List(ctx context.Context, caller Caller, in ListApplicationsInput) ([]models.Application, int64, error) {
	filter := repository.ApplicationFilter{
		SortBy: in.SortBy,
		Limit:  in.Limit,
		Offset: in.Offset,
	}
	if in.Status != "" {
		st := workflow.ApplicationStatus(strings.ToLower(in.Status))
		if !st.Valid() {
			return nil, 0, models.NewValidationError("Invalid status filter")
		}
		filter.Status = st
	}
	if in.Payment != "" {
		p := workflow.PaymentStatus(strings.ToLower(in.Payment))
		if !p.Valid() {
			return nil, 0, models.NewValidationError("Invalid payment filter")
		}
		filter.Payment = p
	}

	switch caller.Role {
	case workflow.RoleModerator, workflow.RoleAdmin:
		filter.Email = validation.NormalizeEmail(in.Email)
	default:
		if in.Email != "" && !strings.EqualFold(in.Email, caller.Email) {
			return nil, 0, models.NewForbiddenError("You can only list your own applications")
		}
		filter.UserID = caller.UserID
	}
	return s.apps.List(ctx, filter)
}

// Edit changes form fields of a pending application owned by caller.
func (s *ApplicationService) Edit(ctx context.Context, caller Caller, id uint, in EditApplicationInput) (app *models.Application, err error) {
	defer func() { observability.RecordTransition(string(workflow.ActionEdit), err) }()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	release, err := acquire(ctx, s.locks, inflight.ApplicationKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	app, err = s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Transition(app.State(), actorFor(caller, app), workflow.ActionEdit); err != nil {
		return nil, workflowError(err)
	}

	fields := map[string]any{}
	set := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fields[col] = v
		}
	}
	set("degree", in.Degree)
	set("scholarship_category", in.ScholarshipCategory)
	set("phone", in.Phone)
	set("photo", in.Photo)
	set("address", in.Address)
	set("gender", in.Gender)
	set("ssc_result", in.SSCResult)
	set("hsc_result", in.HSCResult)
	set("study_gap", in.StudyGap)
	if len(fields) == 0 {
		return nil, models.NewValidationError("Nothing to update")
	}

	if err := s.apps.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.apps.GetByID(ctx, id)
}

// Delete withdraws a pending application owned by caller.
func (s *ApplicationService) Delete(ctx context.Context, caller Caller, id uint) (err error) {
	defer func() { observability.RecordTransition(string(workflow.ActionDelete), err) }()

	release, err := acquire(ctx, s.locks, inflight.ApplicationKey(id))
	if err != nil {
		return err
	}
	defer release()

	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := workflow.Transition(app.State(), actorFor(caller, app), workflow.ActionDelete); err != nil {
		return workflowError(err)
	}
	if err := s.apps.Delete(ctx, id); err != nil {
		return err
	}
	observability.LogTransition(ctx, observability.TransitionLog{
		ApplicationID: app.ID,
		TrackingID:    app.TrackingID,
		Action:        string(workflow.ActionDelete),
		From:          stateLabel(app.State()),
		To:            "deleted",
		ActorID:       caller.UserID,
	})
	return nil
}

// Moderate applies a moderator decision: approve, reject ("cancel") or
// complete. Feedback, when given, is stored on the application.
func (s *ApplicationService) Moderate(ctx context.Context, caller Caller, id uint, in ModerateInput) (*models.Application, error) {
	action, err := workflow.ParseModeratorAction(strings.ToLower(strings.TrimSpace(in.Action)))
	if err != nil {
		return nil, workflowError(err)
	}
	return s.transition(ctx, caller, id, action, in.Feedback, in.TrackingID)
}

// Complete marks an approved and paid application completed.
func (s *ApplicationService) Complete(ctx context.Context, caller Caller, id uint) (*models.Application, error) {
	return s.transition(ctx, caller, id, workflow.ActionComplete, "", "")
}

func (s *ApplicationService) transition(ctx context.Context, caller Caller, id uint, action workflow.Action, feedback, trackingID string) (app *models.Application, err error) {
	ctx, span := observability.StartTransitionSpan(ctx, string(action), id)
	defer func() {
		observability.RecordTransition(string(action), err)
		span.End(err)
	}()

	feedback = strings.TrimSpace(feedback)
	if len(feedback) > maxFeedbackLen {
		return nil, models.NewValidationError("Feedback too long (max 2000 characters)")
	}

	release, err := acquire(ctx, s.locks, inflight.ApplicationKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	app, err = s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = middleware.WithTrackingID(ctx, app.TrackingID)
	if trackingID != "" && trackingID != app.TrackingID {
		return nil, models.NewValidationError("trackingId does not belong to this application")
	}

	from := app.State()
	res, err := workflow.Transition(from, actorFor(caller, app), action)
	if err != nil {
		return nil, workflowError(err)
	}

	ev := &models.TrackingEvent{
		TrackingID: app.TrackingID,
		Status:     res.Event,
		Details:    firstNonEmpty(feedback, eventDetails(res.Event)),
		ActorID:    caller.UserID,
		CreatedAt:  s.now(),
	}
	change := repository.StateChange{From: from, To: res.Next, Event: ev, Feedback: feedback}
	if err := s.apps.TransitionWithEvent(ctx, id, change); err != nil {
		return nil, err
	}
	if feedback != "" {
		app.Feedback = feedback
	}
	app.ApplicationStatus = res.Next.Application
	app.PaymentStatus = res.Next.Payment
	span.SetTransition(app.TrackingID, stateLabel(from), stateLabel(res.Next))

	observability.LogTransition(ctx, observability.TransitionLog{
		ApplicationID: app.ID,
		TrackingID:    app.TrackingID,
		Action:        string(action),
		From:          stateLabel(from),
		To:            stateLabel(res.Next),
		ActorID:       caller.UserID,
	})
	notify(ctx, "notify.status_change", s.notifier.PublishStatusChange(ctx, app.UserID, notifications.StatusChange{
		ApplicationID:   app.ID,
		TrackingID:      app.TrackingID,
		ScholarshipName: app.ScholarshipName,
		From:            from,
		To:              res.Next,
		Event:           res.Event,
		Feedback:        feedback,
		At:              ev.CreatedAt,
	}))
	return app, nil
}

// SetFeedback stores moderator feedback without changing state.
func (s *ApplicationService) SetFeedback(ctx context.Context, caller Caller, id uint, feedback string) (err error) {
	defer func() { observability.RecordTransition(string(workflow.ActionFeedback), err) }()

	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return models.NewValidationError("Feedback is required")
	}
	if len(feedback) > maxFeedbackLen {
		return models.NewValidationError("Feedback too long (max 2000 characters)")
	}

	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := workflow.Transition(app.State(), actorFor(caller, app), workflow.ActionFeedback); err != nil {
		return workflowError(err)
	}
	if err := s.apps.SetFeedback(ctx, id, feedback); err != nil {
		return err
	}
	notify(ctx, "notify.feedback", s.notifier.PublishUser(ctx, app.UserID, notifications.Event{
		Type: notifications.TypeApplicationFeedback,
		Payload: map[string]any{
			"applicationId": app.ID,
			"trackingId":    app.TrackingID,
			"feedback":      feedback,
		},
	}))
	return nil
}

// Timeline returns the ordered events behind a tracking ID. The stored
// events must agree with the application row; a divergence is reported as
// an internal error rather than shown.
func (s *ApplicationService) Timeline(ctx context.Context, trackingID string) (*Timeline, error) {
	trackingID = strings.TrimSpace(trackingID)
	if err := uuid.Validate(trackingID); err != nil {
		return nil, models.NewValidationError("Invalid tracking ID")
	}
	app, err := s.apps.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	events, err := s.apps.ListEvents(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if err := workflow.ValidateTimeline(models.TimelineEntries(events), app.State()); err != nil {
		slog.ErrorContext(ctx, "timeline diverged from application state",
			slog.String("tracking_id", trackingID),
			slog.String("state", stateLabel(app.State())),
			slog.String("error", err.Error()))
		return nil, models.NewInternalError(err)
	}
	return &Timeline{
		TrackingID:        app.TrackingID,
		ScholarshipName:   app.ScholarshipName,
		UniversityName:    app.UniversityName,
		ApplicationStatus: app.ApplicationStatus,
		PaymentStatus:     app.PaymentStatus,
		Events:            events,
	}, nil
}

func actorFor(caller Caller, app *models.Application) workflow.Actor {
	return workflow.Actor{Role: caller.Role, IsOwner: caller.UserID != 0 && caller.UserID == app.UserID}
}

func canView(caller Caller, app *models.Application) bool {
	switch caller.Role {
	case workflow.RoleModerator, workflow.RoleAdmin:
		return true
	}
	return caller.UserID == app.UserID
}

func stateLabel(st workflow.State) string {
	return string(st.Application) + "/" + string(st.Payment)
}

func eventDetails(ev workflow.EventStatus) string {
	switch ev {
	case workflow.EventApplyApproved:
		return "Application approved"
	case workflow.EventApplyRejected:
		return "Application rejected"
	case workflow.EventPaid:
		return "Payment received"
	case workflow.EventCompleted:
		return "Application completed"
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
