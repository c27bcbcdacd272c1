package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okian/taskrouter/internal/adapters/repository"
	"github.com/okian/taskrouter/pkg/logger"
)

// sender is a team member messages are attributed to.
type sender struct {
	team string
	user string
}

var requestTemplates = []string{
	"Can you review the %s pull request before Friday?",
	"Please fix the %s deployment, it is urgent",
	"We need to update the %s docs by tomorrow",
	"Could you take care of the %s migration next week?",
	"Don't forget to test the %s changes asap",
	"Someone should investigate the %s alerts today",
}

var chatterTemplates = []string{
	"Morning all, the %s standup moved to 10",
	"Nice work on the %s demo yesterday",
	"FYI the %s dashboard looks healthy",
	"Lunch at the usual place?",
	"Thanks everyone, great sprint on %s",
}

var subjects = []string{"go", "docker", "react", "billing", "search", "auth"}

// defaultSenders is used when no roster file is given.
var defaultSenders = []sender{
	{"platform", "alice"}, {"platform", "bob"}, {"platform", "carol"},
	{"mobile", "dave"}, {"mobile", "erin"},
}

// loadSenders reads team and user ids from a roster file.
func loadSenders(ctx context.Context, path string) ([]sender, error) {
	if path == "" {
		return defaultSenders, nil
	}
	dir, err := repository.LoadDirectoryFile(path)
	if err != nil {
		return nil, err
	}
	var out []sender
	for _, team := range dir.Teams() {
		members, err := dir.TeamMembers(ctx, team)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			out = append(out, sender{team: m.TeamID, user: m.UserID})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("roster %s has no members", path)
	}
	return out, nil
}

// generateMessages builds a reproducible mix of requests and chatter.
func generateMessages(ctx context.Context, config *Config, senders []sender, stats *Stats) []Message {
	logger.Get().Info(ctx, "generating messages",
		logger.Int("count", config.NumMessages),
		logger.Float64("taskRatio", config.TaskRatio),
	)

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	base := time.Now().UTC().Truncate(time.Second)
	runID := strconv.FormatUint(config.Seed, 36) + "-" + strconv.FormatInt(base.Unix(), 36)

	msgs := make([]Message, config.NumMessages)
	for i := range msgs {
		s := senders[rng.IntN(len(senders))]
		subject := subjects[rng.IntN(len(subjects))]

		expect := rng.Float64() < config.TaskRatio
		tmpl := chatterTemplates[rng.IntN(len(chatterTemplates))]
		if expect {
			tmpl = requestTemplates[rng.IntN(len(requestTemplates))]
			stats.Expected++
		}
		text := tmpl
		if strings.Contains(tmpl, "%s") {
			text = fmt.Sprintf(tmpl, subject)
		}

		msgs[i] = Message{
			ID:         "replay-" + runID + "-" + strconv.Itoa(i),
			TeamID:     s.team,
			SenderID:   s.user,
			Channel:    "general",
			Text:       text,
			TS:         base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			ExpectTask: expect,
		}
	}
	stats.Generated = len(msgs)
	return msgs
}

// readMessages loads a JSON lines file. Blank lines are skipped.
func readMessages(r io.Reader) ([]Message, error) {
	var out []Message
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return out, nil
}

// writeMessages writes msgs as JSON lines.
func writeMessages(w io.Writer, msgs []Message) error {
	enc := json.NewEncoder(w)
	for i := range msgs {
		if err := enc.Encode(msgs[i]); err != nil {
			return fmt.Errorf("write message %d: %w", i, err)
		}
	}
	return nil
}

func readMessagesFile(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return readMessages(f)
}
