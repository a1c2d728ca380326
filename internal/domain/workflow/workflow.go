// Пакет workflow — жизненный цикл релиза.
//
//	draft ──submit──▶ pending ──approve──▶ approved ──process──▶ processing ──publish──▶ published
//	  ▲                 │  │
//	  └────withdraw─────┘  └──reject──▶ rejected ──resubmit──▶ pending
package workflow

import (
	"errors"
	"fmt"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// ErrInvalidTransition — переход из текущего статуса недопустим.
var ErrInvalidTransition = errors.New("недопустимый переход статуса")

// Action — действие над релизом.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionWithdraw Action = "withdraw"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionResubmit Action = "resubmit"
	ActionProcess  Action = "process"
	ActionPublish  Action = "publish"
)

// Actions — все действия в порядке жизненного цикла.
var Actions = []Action{
	ActionSubmit, ActionWithdraw, ActionApprove, ActionReject, ActionResubmit, ActionProcess, ActionPublish,
}

type edge struct {
	from string
	to   string
}

var transitions = map[Action]edge{
	ActionSubmit:   {model.StatusDraft, model.StatusPending},
	ActionWithdraw: {model.StatusPending, model.StatusDraft},
	ActionApprove:  {model.StatusPending, model.StatusApproved},
	ActionReject:   {model.StatusPending, model.StatusRejected},
	ActionResubmit: {model.StatusRejected, model.StatusPending},
	ActionProcess:  {model.StatusApproved, model.StatusProcessing},
	ActionPublish:  {model.StatusProcessing, model.StatusPublished},
}

// ParseAction разбирает действие из URL.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := transitions[a]
	return a, ok
}

// Target возвращает статус, в который действие переводит релиз из from.
func Target(action Action, from string) (string, error) {
	e, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: неизвестное действие %q", ErrInvalidTransition, action)
	}
	if e.from != from {
		return "", fmt.Errorf("%w: %q невозможно из статуса %q", ErrInvalidTransition, action, from)
	}
	return e.to, nil
}

// CanTransition сообщает, существует ли переход from → to.
func CanTransition(from, to string) bool {
	for _, e := range transitions {
		if e.from == from && e.to == to {
			return true
		}
	}
	return false
}

// Allowed возвращает действия, доступные из статуса, в порядке Actions.
func Allowed(status string) []Action {
	var out []Action
	for _, a := range Actions {
		if transitions[a].from == status {
			out = append(out, a)
		}
	}
	return out
}

// IsReviewAction — действие выполняет только Label Manager.
func IsReviewAction(a Action) bool {
	switch a {
	case ActionApprove, ActionReject, ActionProcess, ActionPublish:
		return true
	}
	return false
}

// IsEditable — метаданные релиза ещё можно менять (до одобрения).
func IsEditable(status string) bool {
	switch status {
	case model.StatusDraft, model.StatusPending, model.StatusRejected:
		return true
	}
	return false
}

// IsFinal — дальнейших переходов нет.
func IsFinal(status string) bool {
	return len(Allowed(status)) == 0
}
