// Package query answers the dashboard reads: per-tab appointment lists and
// their counts, as seen from one authoritative asOf.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/lifecycle"
	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

// Reader is the subset of the store the query service needs.
type Reader interface {
	ListByLawyer(ctx context.Context, lawyerRef string, r model.DateRange) ([]model.Appointment, error)
	ListByClient(ctx context.Context, client model.ClientRef) ([]model.Appointment, error)
}

// Subject is whose calendar is being read: a lawyer, or a client.
type Subject struct {
	LawyerRef string
	Client    *model.ClientRef
}

func LawyerSubject(ref string) Subject { return Subject{LawyerRef: ref} }

func ClientSubject(c model.ClientRef) Subject { return Subject{Client: &c} }

type TabKind string

const (
	TabToday     TabKind = "today"
	TabUpcoming  TabKind = "upcoming"
	TabCompleted TabKind = "completed"
	TabAll       TabKind = "all"
	TabPastDue   TabKind = "past_due"
	TabCancelled TabKind = "cancelled"
	TabDate      TabKind = "date"
)

type Tab struct {
	Kind TabKind
	// Date is set for TabDate.
	Date model.Date
}

// ParseTab accepts the tab names and date:YYYY-MM-DD. Empty means all.
func ParseTab(raw string) (Tab, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return Tab{Kind: TabAll}, nil
	}
	if rest, ok := strings.CutPrefix(raw, "date:"); ok {
		d, err := model.ParseDate(rest)
		if err != nil {
			return Tab{}, model.Invalid("tab", err.Error())
		}
		return Tab{Kind: TabDate, Date: d}, nil
	}
	switch k := TabKind(raw); k {
	case TabToday, TabUpcoming, TabCompleted, TabAll, TabPastDue, TabCancelled:
		return Tab{Kind: k}, nil
	}
	return Tab{}, model.Invalid("tab", fmt.Sprintf("unknown tab %q", raw))
}

// Summary counts a subject's appointments per dashboard tab.
type Summary struct {
	Today     int `json:"today"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
	All       int `json:"all"`
	PastDue   int `json:"past_due"`
	Cancelled int `json:"cancelled"`
}

type Service struct {
	store Reader
}

func NewService(store Reader) *Service {
	return &Service{store: store}
}

func (s *Service) load(ctx context.Context, subj Subject) ([]model.Appointment, error) {
	if subj.Client != nil {
		return s.store.ListByClient(ctx, *subj.Client)
	}
	if subj.LawyerRef == "" {
		return nil, model.Invalid("lawyer_ref", "is required")
	}
	return s.store.ListByLawyer(ctx, subj.LawyerRef, model.DateRange{})
}

func (s *Service) Summarize(ctx context.Context, subj Subject, asOf model.Moment) (Summary, error) {
	list, err := s.load(ctx, subj)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(list, asOf), nil
}

// Filter returns the subject's appointments in tab, sorted by (date, time, id).
func (s *Service) Filter(ctx context.Context, subj Subject, asOf model.Moment, tab Tab) ([]model.Appointment, error) {
	list, err := s.load(ctx, subj)
	if err != nil {
		return nil, err
	}
	return FilterList(list, asOf, tab), nil
}

// Summarize is the pure aggregation behind Service.Summarize. All counts every record.
func Summarize(list []model.Appointment, asOf model.Moment) Summary {
	sum := Summary{All: len(list)}
	for _, a := range list {
		switch lifecycle.Classify(a, asOf) {
		case lifecycle.CategoryToday:
			sum.Today++
		case lifecycle.CategoryUpcoming:
			sum.Upcoming++
		case lifecycle.CategoryCompleted:
			sum.Completed++
		case lifecycle.CategoryCancelled:
			sum.Cancelled++
		case lifecycle.CategoryPastDue:
			sum.PastDue++
		}
	}
	return sum
}

func FilterList(list []model.Appointment, asOf model.Moment, tab Tab) []model.Appointment {
	out := make([]model.Appointment, 0, len(list))
	for _, a := range list {
		if matches(a, asOf, tab) {
			out = append(out, a)
		}
	}
	Sort(out)
	return out
}

func matches(a model.Appointment, asOf model.Moment, tab Tab) bool {
	switch tab.Kind {
	case TabAll:
		return true
	case TabDate:
		return a.Date == tab.Date
	case TabPastDue:
		return lifecycle.Classify(a, asOf) == lifecycle.CategoryPastDue
	default:
		return string(lifecycle.Classify(a, asOf)) == string(tab.Kind)
	}
}

// Sort orders ascending by (date, time), ties broken by id.
func Sort(list []model.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if c := a.Start().Compare(b.Start()); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}
