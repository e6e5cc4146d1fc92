// Package terminal runs one consultation interactively on a text console.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ehr/ehr-agent/internal/domain/consultation"
	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/patient"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/ai"
)

// Pipeline is the orchestrator surface the console drives.
type Pipeline interface {
	Run(ctx context.Context, s *consultation.Session, onStage ...consultation.StageFunc) error
	Persist(ctx context.Context, s *consultation.Session) (*report.Report, error)
	Discard(s *consultation.Session) error
}

// Listener captures one spoken segment. "" means nothing was recognized.
type Listener interface {
	ListenOnce(ctx context.Context) (string, error)
}

// Console reads answers from in and writes prompts and results to out.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	pipeline Pipeline
	listener Listener
	now      func() time.Time
}

// New returns a console. listener may be nil, in which case only typed
// transcripts are offered.
func New(in io.Reader, out io.Writer, pipeline Pipeline, listener Listener) *Console {
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		pipeline: pipeline,
		listener: listener,
		now:      time.Now,
	}
}

var patientPrompts = []struct {
	label string
	set   func(p *patient.Info, v string)
}{
	{"Patient name", func(p *patient.Info, v string) { p.Name = v }},
	{"Age", func(p *patient.Info, v string) { p.Age = v }},
	{"Gender", func(p *patient.Info, v string) { p.Gender = v }},
	{"Medical history", func(p *patient.Info, v string) { p.MedicalHistory = v }},
	{"Allergies", func(p *patient.Info, v string) { p.Allergies = v }},
	{"Current medications", func(p *patient.Info, v string) { p.CurrentMedications = v }},
}

// Consult runs one session end to end. An empty transcript ends the session
// without running any stage and returns nil.
func (c *Console) Consult(ctx context.Context) (*consultation.Session, error) {
	rule := strings.Repeat("=", 60)
	c.printf("%s\nEHR Agent consultation\n%s\n\n", rule, rule)

	info := c.collectPatient()

	voice := c.listener != nil && c.chooseVoice()
	sep := consultation.TypedSeparator
	if voice {
		sep = consultation.VoiceSeparator
	}
	s := consultation.NewSession(c.now(), sep)
	if err := s.SetPatient(info); err != nil {
		return s, err
	}

	var err error
	if voice {
		err = c.captureVoice(ctx, s)
	} else {
		err = c.captureTyped(s)
	}
	if err != nil {
		return s, err
	}

	c.printf("\nProcessing consultation...\n")
	if err := c.pipeline.Run(ctx, s, c.showStage); err != nil {
		if errors.Is(err, consultation.ErrEmptyTranscript) {
			c.printf("No transcript captured, nothing to do.\n")
			return s, nil
		}
		return s, err
	}

	if !c.confirm("\nSave report? (y/n): ", false) {
		if err := c.pipeline.Discard(s); err != nil {
			return s, err
		}
		c.printf("Report discarded.\n")
		return s, nil
	}
	r, err := c.pipeline.Persist(ctx, s)
	if err != nil {
		c.printf("Failed to save report: %v\n", err)
		return s, err
	}
	c.printf("Report saved: %s\n", r.Location)
	return s, nil
}

func (c *Console) collectPatient() patient.Info {
	c.printf("Patient information (press Enter to skip a field)\n")
	var p patient.Info
	for _, f := range patientPrompts {
		c.printf("%s: ", f.label)
		v, _ := c.readLine()
		f.set(&p, v)
	}
	return p
}

func (c *Console) chooseVoice() bool {
	c.printf("\nTranscript input: [1] voice  [2] typed (default 2): ")
	v, _ := c.readLine()
	return v == "1"
}

func (c *Console) captureVoice(ctx context.Context, s *consultation.Session) error {
	c.printf("\nVoice capture. Speak after the prompt.\n")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.printf("Listening...\n")
		text, err := c.listener.ListenOnce(ctx)
		switch {
		case err != nil:
			c.printf("Recording failed: %v\n", err)
			if !c.confirm("Retry? (y/n): ", true) {
				return nil
			}
			continue
		case strings.TrimSpace(text) == "":
			c.printf("Nothing recognized.\n")
			if !c.confirm("Retry? (y/n): ", true) {
				return nil
			}
			continue
		}

		c.printf("> %s\n", text)
		if err := s.AddUtterance(text); err != nil {
			return err
		}
		if !c.confirm("Continue recording? (y/n): ", true) {
			return nil
		}
	}
}

func (c *Console) captureTyped(s *consultation.Session) error {
	c.printf("\nEnter the consultation transcript. Finish with an empty line.\n")
	for {
		line, ok := c.readLine()
		if line == "" {
			return nil
		}
		if err := s.AddUtterance(line); err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

func (c *Console) showStage(stage consultation.State, s *consultation.Session) {
	switch stage {
	case consultation.StateComposingSOAP:
		c.printf("\n%s", soap.FormatText(s.SOAP))
		c.printGuidance(s.SOAP.Err)
	case consultation.StateRecommendingExams:
		if s.Exams.Failed() {
			c.printf("\nExamination advice failed: %s\n", s.Exams.ErrorMessage())
			c.printGuidance(s.Exams.Err)
			return
		}
		c.printf("%s", examination.FormatRecommendations(s.Exams.Value))
	case consultation.StateScreeningDrugs:
		if len(s.Drugs.Drugs) > 0 {
			c.printf("\nPrescribed drugs: %s\n", strings.Join(s.Drugs.Drugs, ", "))
		}
		c.printf("%s", drugcheck.FormatReport(s.Drugs.Report))
		c.printGuidance(s.Drugs.Report.Err)
	}
}

func (c *Console) printGuidance(err *ai.Error) {
	if err == nil {
		return
	}
	if g := err.Guidance(); g != "" {
		c.printf("hint: %s\n", g)
	}
}

// confirm asks a yes/no question. End of input counts as no.
func (c *Console) confirm(prompt string, def bool) bool {
	c.printf("%s", prompt)
	v, ok := c.readLine()
	if v == "" {
		if !ok {
			return false
		}
		return def
	}
	switch strings.ToLower(v) {
	case "y", "yes", "是":
		return true
	default:
		return false
	}
}

// readLine returns the trimmed line and false once input is exhausted.
func (c *Console) readLine() (string, bool) {
	line, err := c.in.ReadString('\n')
	return strings.TrimSpace(line), err == nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
