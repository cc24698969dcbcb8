package bookings

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"pawbook/backend/internal/domain"
)

// lifecycle is every edge a booking can ever take, regardless of who asks.
var lifecycle = map[domain.BookingStatus][]domain.BookingStatus{
	domain.StatusPending:    {domain.StatusConfirmed, domain.StatusCancelled},
	domain.StatusConfirmed:  {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusCompleted, domain.StatusCancelled},
}

// TransitionTable maps (role, from) to the statuses that role may move a
// booking to.
type TransitionTable map[domain.Role]map[domain.BookingStatus][]domain.BookingStatus

func DefaultTransitionTable() TransitionTable {
	admin := make(map[domain.BookingStatus][]domain.BookingStatus, len(lifecycle))
	for from, to := range lifecycle {
		admin[from] = append([]domain.BookingStatus(nil), to...)
	}
	return TransitionTable{
		domain.RoleCustomer: {
			domain.StatusPending:   {domain.StatusCancelled},
			domain.StatusConfirmed: {domain.StatusCancelled},
		},
		domain.RoleEmployee: {
			domain.StatusPending:    {domain.StatusConfirmed, domain.StatusCancelled},
			domain.StatusConfirmed:  {domain.StatusInProgress, domain.StatusCancelled},
			domain.StatusInProgress: {domain.StatusCompleted, domain.StatusCancelled},
		},
		domain.RoleAdmin: admin,
		domain.RoleSystem: {
			domain.StatusPending: {domain.StatusCancelled},
		},
	}
}

func (t TransitionTable) Allowed(role domain.Role, from, to domain.BookingStatus) bool {
	for _, s := range t[role][from] {
		if s == to {
			return true
		}
	}
	return false
}

// Validate rejects any entry that is not an edge of the booking lifecycle.
func (t TransitionTable) Validate() error {
	for role, byFrom := range t {
		if _, err := domain.ParseRole(string(role)); err != nil {
			return err
		}
		for from, targets := range byFrom {
			if _, err := domain.ParseBookingStatus(string(from)); err != nil {
				return err
			}
			if from.IsTerminal() && len(targets) > 0 {
				return fmt.Errorf("%s: %s is terminal and cannot have transitions", role, from)
			}
			for _, to := range targets {
				if _, err := domain.ParseBookingStatus(string(to)); err != nil {
					return err
				}
				if !isEdge(from, to) {
					return fmt.Errorf("%s: %s -> %s is not a booking lifecycle transition", role, from, to)
				}
			}
		}
	}
	return nil
}

// Edges lists every (role, from, to) triple in a stable order.
func (t TransitionTable) Edges() []Edge {
	var out []Edge
	for role, byFrom := range t {
		for from, targets := range byFrom {
			for _, to := range targets {
				out = append(out, Edge{Role: role, From: from, To: to})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		if out[i].From != out[j].From {
			return statusOrder(out[i].From) < statusOrder(out[j].From)
		}
		return statusOrder(out[i].To) < statusOrder(out[j].To)
	})
	return out
}

type Edge struct {
	Role domain.Role
	From domain.BookingStatus
	To   domain.BookingStatus
}

// LoadTransitionTable reads a YAML document of the form
//
//	customer:
//	  pending: [cancelled]
//
// Roles left out of the file have no transitions.
func LoadTransitionTable(path string) (TransitionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTransitionTable(data)
}

func ParseTransitionTable(data []byte) (TransitionTable, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse transition table: %w", err)
	}

	table := make(TransitionTable, len(raw))
	for roleName, byFrom := range raw {
		role, err := domain.ParseRole(roleName)
		if err != nil {
			return nil, err
		}
		table[role] = make(map[domain.BookingStatus][]domain.BookingStatus, len(byFrom))
		for fromName, targets := range byFrom {
			from, err := domain.ParseBookingStatus(fromName)
			if err != nil {
				return nil, err
			}
			for _, toName := range targets {
				to, err := domain.ParseBookingStatus(toName)
				if err != nil {
					return nil, err
				}
				table[role][from] = append(table[role][from], to)
			}
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func isEdge(from, to domain.BookingStatus) bool {
	for _, s := range lifecycle[from] {
		if s == to {
			return true
		}
	}
	return false
}

func statusOrder(s domain.BookingStatus) int {
	for i, st := range domain.Statuses {
		if st == s {
			return i
		}
	}
	return len(domain.Statuses)
}
