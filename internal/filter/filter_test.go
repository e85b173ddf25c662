package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnore(t *testing.T) {
	tests := []struct {
		name    string
		rules   Rules
		from    string
		subject string
		want    bool
	}{
		{
			name:    "empty rules keep everything",
			rules:   Rules{},
			from:    "Newsletter <spam@x.com>",
			subject: "Weekly Deals",
			want:    false,
		},
		{
			name:    "sender address substring",
			rules:   Rules{Senders: []string{"spam@x.com"}},
			from:    "Newsletter <spam@x.com>",
			subject: "Weekly Deals",
			want:    true,
		},
		{
			name:    "sender display name substring",
			rules:   Rules{Senders: []string{"Marketing"}},
			from:    "Marketing Dept <info@example.com>",
			subject: "Hello",
			want:    true,
		},
		{
			name:    "subject substring",
			rules:   Rules{Subjects: []string{"[ADV]"}},
			from:    "friend@example.com",
			subject: "[ADV] Buy now",
			want:    true,
		},
		{
			name:    "axes combined with OR",
			rules:   Rules{Senders: []string{"nobody"}, Subjects: []string{"Deals"}},
			from:    "Newsletter <spam@x.com>",
			subject: "Weekly Deals",
			want:    true,
		},
		{
			name:    "matching is case-sensitive",
			rules:   Rules{Senders: []string{"SPAM@X.COM"}, Subjects: []string{"weekly deals"}},
			from:    "Newsletter <spam@x.com>",
			subject: "Weekly Deals",
			want:    false,
		},
		{
			name:    "no match on either axis",
			rules:   Rules{Senders: []string{"other@y.org"}, Subjects: []string{"Invoice"}},
			from:    "Newsletter <spam@x.com>",
			subject: "Weekly Deals",
			want:    false,
		},
		{
			name:    "empty pattern matches everything",
			rules:   Rules{Subjects: []string{""}},
			from:    "a@b.com",
			subject: "anything",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rules.Ignore(tt.from, tt.subject))
		})
	}
}
