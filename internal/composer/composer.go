// Package composer turns a match (or the lack of one) into the assistant's
// spoken reply.
package composer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"trace-go/internal/ai"
	"trace-go/internal/extractor"
	"trace-go/internal/types"
)

// OffTopicReply is returned verbatim for queries outside the assistant's scope.
const OffTopicReply = "I appreciate you reaching out! I'm Trace, your personal memory assistant. I'm here specifically to help you remember past activities, find lost objects, or recall events captured by your smart glasses. Feel free to ask me things like 'Where did I put my keys?' or 'What was I doing this morning?' I'm always here to help with your memories!"

// NotFoundFallback is used when the backend returns no text for a miss.
const NotFoundFallback = "I understand you're looking for that memory. I don't have a recording of that specific moment yet, but try retracing your steps, and I'll keep listening for it."

// RecordedDateLayout formats the date a record was captured.
const RecordedDateLayout = "Monday, Jan 2, 2006"

const foundPrompt = `You are Trace, a friendly personal memory assistant. The user asked: "%s". I searched the database and found a likely match. Use the following facts to compose a warm, conversational reply. IMPORTANT: Always mention the time and relative date (e.g. "today around 2:30 PM", "yesterday at 9 AM", "3 days ago") so the user knows exactly when it happened. Do NOT use bullet lists or enumerations; write in full natural sentences like a real human conversation. Keep it short (2-4 sentences).

CURRENT TIME: %s at %s
FACTS: %s

Output only the assistant reply text.`

const notFoundPrompt = `You are Trace, a compassionate personal memory assistant. The user asked: "%s" but no matching recordings were found. Reply in a warm, human conversational tone without using bullet lists. Offer gentle, practical suggestions phrased as natural sentences (not a list). Keep the reply concise (2-4 sentences) and encouraging.`

type Composer struct {
	gen   ai.Generator
	model string
	loc   *time.Location
	log   *logrus.Entry
}

func New(gen ai.Generator, model string, loc *time.Location, log *logrus.Entry) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{gen: gen, model: model, loc: loc, log: log.WithField("component", "composer")}
}

// Found describes the best match relative to now. Backend errors are returned;
// an empty reply falls back to the joined facts.
func (c *Composer) Found(ctx context.Context, transcription string, match types.ScoredMatch, tc types.TimeContext, now time.Time) (string, error) {
	facts := Facts(match.Record, now, c.loc)
	prompt := fmt.Sprintf(foundPrompt, transcription, tc.Date, tc.Time, strings.Join(facts, " | "))

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("compose found reply: %w", err)
	}
	if text == "" {
		c.log.Warn("empty found reply, using facts")
		return "I found a recording that looks relevant: " + strings.Join(facts, "; ") + ".", nil
	}
	return text, nil
}

// NotFound produces an encouraging reply when nothing matched.
func (c *Composer) NotFound(ctx context.Context, transcription string) (string, error) {
	text, err := c.generate(ctx, fmt.Sprintf(notFoundPrompt, transcription))
	if err != nil {
		return "", fmt.Errorf("compose not-found reply: %w", err)
	}
	if text == "" {
		c.log.Warn("empty not-found reply, using fallback")
		return NotFoundFallback, nil
	}
	return text, nil
}

func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	raw, err := c.gen.Generate(ctx, ai.Request{Model: c.model, Prompt: prompt, Format: ai.FormatText})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// Facts lists what is known about a record: when, summary, location and
// objects, skipping anything empty.
func Facts(rec types.AnalysisRecord, now time.Time, loc *time.Location) []string {
	a := rec.Analysis
	facts := []string{}

	if !rec.SentAt.IsZero() {
		at := rec.SentAt.In(loc)
		facts = append(facts, fmt.Sprintf("when: %s at %s (%s)",
			RelativeDay(rec.SentAt, now, loc), at.Format(extractor.TimeLayout), at.Format(RecordedDateLayout)))
	}
	if s := strings.TrimSpace(a.Summary); s != "" {
		facts = append(facts, s)
	}
	if locs := nonEmpty(a.Locations); len(locs) > 0 {
		facts = append(facts, "location: "+strings.Join(locs, ", "))
	}
	if objs := nonEmpty(a.Objects); len(objs) > 0 {
		facts = append(facts, "objects: "+strings.Join(objs, ", "))
	}
	return facts
}

// RelativeDay compares calendar days in loc: "today", "yesterday",
// "<n> days ago" for 2 to 6 days, otherwise "on <date>". Future timestamps
// also get the "on <date>" form.
func RelativeDay(sentAt, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	event := sentAt.In(loc)
	today := now.In(loc)

	eventDay := time.Date(event.Year(), event.Month(), event.Day(), 0, 0, 0, 0, loc)
	nowDay := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	// Rounded so DST transitions still count as whole days.
	days := int(math.Round(nowDay.Sub(eventDay).Hours() / 24))

	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days >= 2 && days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return "on " + event.Format(RecordedDateLayout)
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
