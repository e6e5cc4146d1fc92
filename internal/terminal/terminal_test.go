package terminal

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ehr-agent/internal/domain/consultation"
	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/ai/aitest"
	"github.com/ehr/ehr-agent/internal/platform/blobstore"
)

const (
	soapReply  = `{"chief_complaint":"headache","subjective":"headache for 3 days","plan":"ibuprofen 400mg","preliminary_diagnosis":["tension headache"]}`
	examReply  = `{"examinations":[{"name":"Blood pressure","type":"routine","reason":"headache","priority":"high"}]}`
	drugReply  = `{"drugs":["ibuprofen"]}`
	checkReply = `{"has_conflicts":false,"severity":"none"}`
)

// patientLines answers the six patient prompts.
const patientLines = "Zhang\n45\nmale\n\npenicillin\n\n"

type scriptedListener struct {
	segments []string
	calls    int
}

func (l *scriptedListener) ListenOnce(_ context.Context) (string, error) {
	l.calls++
	if len(l.segments) == 0 {
		return "", nil
	}
	s := l.segments[0]
	l.segments = l.segments[1:]
	return s, nil
}

type fixture struct {
	ai    *aitest.Completer
	store *blobstore.InMemoryStore
	orch  *consultation.Orchestrator
	out   *bytes.Buffer
}

func newFixture(replies ...aitest.Reply) *fixture {
	c := aitest.NewCompleter(replies...)
	gw := aitest.Gateway(c)
	store := blobstore.NewInMemoryStore()
	orch := consultation.NewOrchestrator(
		soap.NewComposer(gw),
		examination.NewAdvisor(gw),
		drugcheck.NewScreener(gw),
		report.NewService(store, nil, zerolog.Nop()),
		zerolog.Nop(),
	)
	return &fixture{ai: c, store: store, orch: orch, out: &bytes.Buffer{}}
}

func (f *fixture) console(input string, l Listener) *Console {
	c := New(strings.NewReader(input), f.out, f.orch, l)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 15, 0, time.Local) }
	return c
}

func TestConsole_TypedTranscript_Saved(t *testing.T) {
	f := newFixture(aitest.JSON(soapReply), aitest.JSON(examReply), aitest.JSON(drugReply), aitest.JSON(checkReply))
	input := patientLines + "patient reports headache\nprescribed ibuprofen 400mg\n\ny\n"

	s, err := f.console(input, nil).Consult(context.Background())
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if s.State() != consultation.StatePersisted {
		t.Errorf("expected persisted, got %s", s.State())
	}
	if got := s.TranscriptText(); got != "patient reports headache\nprescribed ibuprofen 400mg" {
		t.Errorf("expected typed lines joined by newline, got %q", got)
	}
	p := s.Patient()
	if p.Name != "Zhang" || p.Allergies != "penicillin" || p.MedicalHistory != "none" {
		t.Errorf("unexpected patient %+v", p)
	}

	out := f.out.String()
	for _, want := range []string{"SOAP note", "[High priority]", "Prescribed drugs: ibuprofen", "Report saved: memory://ehr_report_20240501_093015.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
	objs, _ := f.store.List(context.Background(), "")
	if len(objs) != 1 {
		t.Errorf("expected one saved report, got %d", len(objs))
	}
}

func TestConsole_VoiceTranscript_Discarded(t *testing.T) {
	f := newFixture(aitest.JSON(soapReply), aitest.JSON(examReply), aitest.JSON(drugReply), aitest.JSON(checkReply))
	l := &scriptedListener{segments: []string{"headache for 3 days", "", "ibuprofen 400mg"}}
	// voice mode, continue, retry after silence, stop, do not save
	input := patientLines + "1\ny\ny\nn\nn\n"

	s, err := f.console(input, l).Consult(context.Background())
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if l.calls != 3 {
		t.Errorf("expected 3 recordings, got %d", l.calls)
	}
	if got := s.TranscriptText(); got != "headache for 3 days ibuprofen 400mg" {
		t.Errorf("expected segments joined by space, got %q", got)
	}
	if s.State() != consultation.StateDiscarded {
		t.Errorf("expected discarded, got %s", s.State())
	}
	if !strings.Contains(f.out.String(), "Nothing recognized.") {
		t.Error("expected a notice for the silent segment")
	}
	objs, _ := f.store.List(context.Background(), "")
	if len(objs) != 0 {
		t.Errorf("expected nothing saved, got %d", len(objs))
	}
}

func TestConsole_EmptyTranscript(t *testing.T) {
	f := newFixture()
	s, err := f.console(patientLines+"\n", nil).Consult(context.Background())
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if f.ai.Calls() != 0 {
		t.Errorf("expected no provider calls, got %d", f.ai.Calls())
	}
	if s.State() != consultation.StateDiscarded {
		t.Errorf("expected discarded, got %s", s.State())
	}
	if !strings.Contains(f.out.String(), "No transcript captured") {
		t.Errorf("expected empty transcript notice:\n%s", f.out.String())
	}
}

func TestConsole_EndOfInputAtSavePrompt(t *testing.T) {
	f := newFixture(aitest.JSON(soapReply), aitest.JSON(examReply), aitest.JSON(`{"drugs":[]}`))
	s, err := f.console(patientLines+"headache\n\n", nil).Consult(context.Background())
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if s.State() != consultation.StateDiscarded {
		t.Errorf("expected end of input to decline saving, got %s", s.State())
	}
	if !strings.Contains(f.out.String(), drugcheck.NoDrugsMessage) {
		t.Error("expected the no-drugs message")
	}
}

func TestConsole_Confirm(t *testing.T) {
	tests := []struct {
		in   string
		def  bool
		want bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"", true, false},
	}
	for _, tt := range tests {
		c := New(strings.NewReader(tt.in), &bytes.Buffer{}, nil, nil)
		if got := c.confirm("? ", tt.def); got != tt.want {
			t.Errorf("confirm(%q, %v) = %v, want %v", tt.in, tt.def, got, tt.want)
		}
	}
}
