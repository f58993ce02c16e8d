package domain

import "testing"

func TestAllImpostorsDead(t *testing.T) {
	tests := []struct {
		name      string
		impostors []string
		dead      []string
		want      bool
	}{
		{"all dead", []string{"zurg", "Nutty"}, []string{"Nutty", "zurg", "Aiden"}, true},
		{"one alive", []string{"zurg", "Nutty"}, []string{"zurg"}, false},
		{"no impostors reported", nil, []string{"zurg"}, false},
		{"nobody dead", []string{"zurg"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &GameEvent{Impostors: tt.impostors, DeadPlayers: tt.dead}
			if got := e.AllImpostorsDead(); got != tt.want {
				t.Errorf("AllImpostorsDead() = %v, want %v", got, tt.want)
			}
		})
	}
}
