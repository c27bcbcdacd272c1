package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/taskrouter/internal/adapters/repository"
	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/internal/domain/rank"
	"github.com/okian/taskrouter/pkg/logger"
	"github.com/okian/taskrouter/pkg/metrics"
)

// Process runs one queued message through detection and ranking and stores
// a task when the message is classified as one. It is the worker entry
// point.
func (s *Service) Process(ctx context.Context, msg model.Message) error { //nolint:gocritic // hugeParam
	now := s.now()
	activeAt := msg.TS
	if activeAt.IsZero() {
		activeAt = now
	}
	if err := s.directory.Touch(ctx, msg.SenderID, activeAt); err != nil {
		s.logger.Warn(ctx, "failed to record sender activity",
			logger.String("senderID", msg.SenderID),
			logger.Error(err),
		)
	}

	res, err := s.Detect(ctx, msg.Text)
	if err != nil {
		return err
	}
	if !res.IsTask {
		s.logger.Debug(ctx, "message is not a task",
			logger.String("messageID", msg.ID),
			logger.Float64("confidence", res.Confidence),
		)
		return nil
	}

	candidates, err := s.CandidatePool(ctx, msg.TeamID, msg.SenderID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	scores, err := s.Rank(ctx, res.TaskText, res.SuggestedSkills, candidates, nil)
	if err != nil {
		return err
	}
	if len(scores) > s.maxSuggestions {
		scores = scores[:s.maxSuggestions]
	}

	task := model.Task{
		ID:          uuid.NewString(),
		MessageID:   msg.ID,
		TeamID:      msg.TeamID,
		RequesterID: msg.SenderID,
		Text:        res.TaskText,
		Context:     res.Context,
		Deadline:    res.Deadline,
		Priority:    res.Priority,
		Skills:      res.SuggestedSkills,
		Confidence:  res.Confidence,
		Suggestions: scores,
		Status:      model.TaskPending,
		CreatedAt:   now,
	}
	if s.autoAssign && len(scores) > 0 {
		at := now
		task.Status = model.TaskAssigned
		task.AssigneeID = scores[0].UserID
		task.AssignedAt = &at
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Debug(ctx, "task already exists for message", logger.String("messageID", msg.ID))
			return nil
		}
		return fmt.Errorf("store task: %w", err)
	}
	metrics.RecordTaskCreated()

	s.logger.Info(ctx, "task created",
		logger.String("taskID", task.ID),
		logger.String("messageID", msg.ID),
		logger.Float64("confidence", res.Confidence),
		logger.Int("suggestions", len(scores)),
	)
	s.notify(ctx, model.TaskEvent{Type: model.TaskEventCreated, Task: task})

	if task.Status == model.TaskAssigned {
		s.adjustWorkload(ctx, task.AssigneeID, 1)
		metrics.RecordTaskAssigned()
		s.notify(ctx, model.TaskEvent{Type: model.TaskEventAssigned, Task: task})
	}
	return nil
}

// CandidatePool resolves a team's roster minus excludeUserID into ranking
// candidates. Workload is measured against the whole team's average.
func (s *Service) CandidatePool(ctx context.Context, teamID, excludeUserID string) ([]model.Candidate, error) {
	members, err := s.directory.TeamMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("resolve team %s: %w", teamID, err)
	}

	counts := make([]int, 0, len(members))
	for _, m := range members {
		counts = append(counts, m.ActiveTasks)
	}
	avg := rank.TeamAverage(counts)
	now := s.now()

	out := make([]model.Candidate, 0, len(members))
	for _, m := range members {
		if m.UserID == excludeUserID {
			continue
		}
		out = append(out, model.Candidate{
			UserID:        m.UserID,
			Name:          m.Name,
			ContactHandle: m.ContactHandle,
			Skills:        m.Skills,
			ActivityScore: rank.ActivityScore(m.LastActive, now),
			WorkloadScore: rank.WorkloadScore(m.ActiveTasks, avg),
		})
	}
	return out, nil
}
