package intent

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"agenda/pkg/task"
)

// Default times of day for values given as bare dates or omitted.
const (
	deadlineHour, deadlineMinute = 23, 59
	startHour                    = 9
)

// QueryWindows are the window names a QUERY may carry.
var QueryWindows = map[string]bool{
	"today": true, "tomorrow": true, "week": true,
	"morning": true, "afternoon": true, "evening": true,
}

// Validator checks envelopes and normalizes their times into Location.
type Validator struct {
	Location *time.Location
	Now      func() time.Time
}

// NewValidator returns a Validator for the user's timezone.
func NewValidator(loc *time.Location) *Validator {
	return &Validator{Location: loc, Now: time.Now}
}

// Validate converts env into a typed Action. It has no side effects.
func (v *Validator) Validate(env Envelope) (Action, error) {
	p := params{raw: env.Params, loc: v.Location}
	if p.raw == nil {
		p.raw = map[string]any{}
	}
	b := base{Message: env.Message}

	switch Kind(strings.ToUpper(strings.TrimSpace(env.Action))) {
	case KindAddTask:
		return v.addTask(b, p)
	case KindAddEvent:
		return v.addEvent(b, p)
	case KindCompleteTask:
		ref, err := p.reference("task_id", "task_title")
		if err != nil {
			return nil, err
		}
		return CompleteTask{base: b, Ref: ref}, nil
	case KindDeleteTask:
		ref, err := p.reference("id", "title")
		if err != nil {
			return nil, err
		}
		return DeleteTask{base: b, Ref: ref}, nil
	case KindDeleteEvent:
		ref, err := p.reference("id", "title")
		if err != nil {
			return nil, err
		}
		return DeleteEvent{base: b, Ref: ref}, nil
	case KindModifyTask:
		return v.modifyTask(b, p)
	case KindModifyEvent:
		return v.modifyEvent(b, p)
	case KindQuery:
		w, _, err := p.str("window")
		if err != nil {
			return nil, err
		}
		w = strings.ToLower(strings.TrimSpace(w))
		if !QueryWindows[w] {
			w = ""
		}
		return Query{base: b, Window: w}, nil
	default:
		return nil, malformed("unknown action %q", env.Action)
	}
}

func (v *Validator) addTask(b base, p params) (Action, error) {
	title, err := p.required("title")
	if err != nil {
		return nil, err
	}
	a := AddTask{base: b, Title: title, Priority: task.Medium}
	if a.Description, _, err = p.str("description"); err != nil {
		return nil, err
	}

	deadline, present, err := p.instant("deadline", deadlineHour, deadlineMinute)
	if err != nil {
		return nil, err
	}
	if present {
		a.Deadline = deadline
	} else {
		a.Deadline = atClock(v.now(), deadlineHour, deadlineMinute)
	}

	if pr, ok, err := p.priority("priority"); err != nil {
		return nil, err
	} else if ok {
		a.Priority = pr
	}
	if a.Effort, _, err = p.duration("effort"); err != nil {
		return nil, err
	}
	return a, nil
}

func (v *Validator) addEvent(b base, p params) (Action, error) {
	title, err := p.required("title")
	if err != nil {
		return nil, err
	}
	start, present, err := p.instant("start_time", startHour, 0)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, malformed("ADD_EVENT requires start_time")
	}
	a := AddEvent{base: b, Title: title, Start: start}
	if end, ok, err := p.instant("end_time", deadlineHour, deadlineMinute); err != nil {
		return nil, err
	} else if ok {
		a.End = &end
	}
	if a.Location, _, err = p.str("location"); err != nil {
		return nil, err
	}
	if a.Description, _, err = p.str("description"); err != nil {
		return nil, err
	}
	return a, nil
}

func (v *Validator) modifyTask(b base, p params) (Action, error) {
	ref, err := p.reference("task_id", "task_title")
	if err != nil {
		return nil, err
	}
	a := ModifyTask{base: b, Ref: ref}
	if s, ok, err := p.str("new_title"); err != nil {
		return nil, err
	} else if ok && s != "" {
		a.Title = &s
	}
	if s, ok, err := p.str("new_description"); err != nil {
		return nil, err
	} else if ok {
		a.Description = &s
	}
	if t, ok, err := p.instant("new_deadline", deadlineHour, deadlineMinute); err != nil {
		return nil, err
	} else if ok {
		a.Deadline = &t
	}
	if pr, ok, err := p.priority("new_priority"); err != nil {
		return nil, err
	} else if ok {
		a.Priority = &pr
	}
	if d, ok, err := p.duration("new_effort"); err != nil {
		return nil, err
	} else if ok {
		a.Effort = &d
	}
	if a.Title == nil && a.Description == nil && a.Deadline == nil && a.Priority == nil && a.Effort == nil {
		return nil, malformed("MODIFY_TASK without any change")
	}
	return a, nil
}

func (v *Validator) modifyEvent(b base, p params) (Action, error) {
	ref, err := p.reference("event_id", "event_title")
	if err != nil {
		return nil, err
	}
	a := ModifyEvent{base: b, Ref: ref}
	if s, ok, err := p.str("new_title"); err != nil {
		return nil, err
	} else if ok && s != "" {
		a.Title = &s
	}
	if t, ok, err := p.instant("new_start_time", startHour, 0); err != nil {
		return nil, err
	} else if ok {
		a.Start = &t
	}
	if t, ok, err := p.instant("new_end_time", deadlineHour, deadlineMinute); err != nil {
		return nil, err
	} else if ok {
		a.End = &t
	}
	if s, ok, err := p.str("new_location"); err != nil {
		return nil, err
	} else if ok {
		a.Location = &s
	}
	if s, ok, err := p.str("new_description"); err != nil {
		return nil, err
	} else if ok {
		a.Description = &s
	}
	if a.Title == nil && a.Description == nil && a.Start == nil && a.End == nil && a.Location == nil {
		return nil, malformed("MODIFY_EVENT without any change")
	}
	return a, nil
}

func (v *Validator) now() time.Time {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return now().In(v.Location)
}

// params reads typed values out of the untrusted params map. A key holding
// JSON null is treated as absent.
type params struct {
	raw map[string]any
	loc *time.Location
}

func (p params) get(key string) (any, bool) {
	v, ok := p.raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (p params) str(key string) (string, bool, error) {
	v, ok := p.get(key)
	if !ok {
		return "", false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", false, malformed("%s must be a string, got %T", key, v)
	}
	return strings.TrimSpace(s), true, nil
}

func (p params) required(key string) (string, error) {
	s, ok, err := p.str(key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", malformed("missing %s", key)
	}
	return s, nil
}

// id accepts numbers or strings, since the model emits either.
func (p params) id(key string) (string, bool, error) {
	v, ok := p.get(key)
	if !ok {
		return "", false, nil
	}
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		return x, x != "", nil
	case json.Number:
		return x.String(), true, nil
	case float64:
		if x != math.Trunc(x) {
			return "", false, malformed("%s must be an integer id", key)
		}
		return strconv.FormatInt(int64(x), 10), true, nil
	case int:
		return strconv.Itoa(x), true, nil
	default:
		return "", false, malformed("%s has unsupported type %T", key, v)
	}
}

func (p params) reference(idKey, titleKey string) (Reference, error) {
	id, hasID, err := p.id(idKey)
	if err != nil {
		return nil, err
	}
	title, hasTitle, err := p.str(titleKey)
	if err != nil {
		return nil, err
	}
	switch {
	case hasID:
		return ByID{ID: id, Title: title}, nil
	case hasTitle && title != "":
		return ByText{Text: title}, nil
	default:
		return nil, malformed("need %s or %s", idKey, titleKey)
	}
}

func (p params) instant(key string, defHour, defMin int) (time.Time, bool, error) {
	s, ok, err := p.str(key)
	if err != nil || !ok || s == "" {
		return time.Time{}, false, err
	}
	t, dateOnly, parsed := parseInstant(s, p.loc)
	if !parsed {
		return time.Time{}, false, &TimeError{Field: key, Value: s}
	}
	if dateOnly {
		t = atClock(t, defHour, defMin)
	}
	return t, true, nil
}

func (p params) priority(key string) (task.Priority, bool, error) {
	s, ok, err := p.str(key)
	if err != nil || !ok || s == "" {
		return "", false, err
	}
	pr := task.Priority(strings.ToLower(s))
	if !pr.Valid() {
		return "", false, malformed("%s %q is not low, medium or high", key, s)
	}
	return pr, true, nil
}

// duration accepts minutes as a number or a Go duration string ("1h30m").
func (p params) duration(key string) (time.Duration, bool, error) {
	v, ok := p.get(key)
	if !ok {
		return 0, false, nil
	}
	var d time.Duration
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false, malformed("%s: %v", key, err)
		}
		d = time.Duration(f * float64(time.Minute))
	case float64:
		d = time.Duration(x * float64(time.Minute))
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(x))
		if err != nil {
			return 0, false, malformed("%s: %v", key, err)
		}
		d = parsed
	default:
		return 0, false, malformed("%s has unsupported type %T", key, v)
	}
	if d < 0 {
		return 0, false, malformed("%s is negative", key)
	}
	return d, true, nil
}

// String renders a reference for logs.
func String(r Reference) string {
	switch x := r.(type) {
	case ByID:
		return fmt.Sprintf("id:%s", x.ID)
	case ByText:
		return fmt.Sprintf("text:%q", x.Text)
	default:
		return "<nil>"
	}
}
