package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "empty args",
			args:    []string{},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "keeps allowed flag with value",
			args:    []string{"-c", "config.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "config.json"},
		},
		{
			name:    "drops unknown flag",
			args:    []string{"-d", "postgres://localhost/news", "-c", "config.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "config.json"},
		},
		{
			name:    "equals form kept",
			args:    []string{"--config=config.json"},
			allowed: []string{"--config"},
			want:    []string{"--config=config.json"},
		},
		{
			name:    "equals form dropped",
			args:    []string{"--dsn=postgres://localhost/news"},
			allowed: []string{"-c", "-config"},
			want:    []string{},
		},
		{
			name:    "flag without value",
			args:    []string{"-c", "-verbose"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "long and short forms",
			args:    []string{"-config", "a.json", "-c", "b.json"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config", "a.json", "-c", "b.json"},
		},
		{
			name:    "positional arguments dropped",
			args:    []string{"useradd", "-c", "config.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "config.json"},
		},
		{
			name:    "value resembling flag not consumed",
			args:    []string{"-c", "-config"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "-config"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-c", "config.json", "-d", "dsn"},
			allowed: []string{},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "no flags",
			args: []string{"server"},
			want: "",
		},
		{
			name: "short form",
			args: []string{"server", "-c", "config.json"},
			want: "config.json",
		},
		{
			name: "long form",
			args: []string{"server", "-config", "/etc/newsflow/config.json"},
			want: "/etc/newsflow/config.json",
		},
		{
			name: "unrelated flags ignored",
			args: []string{"server", "-a", ":1190", "-c", "config.json"},
			want: "config.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := os.Args
			defer func() { os.Args = orig }()
			os.Args = tt.args

			assert.Equal(t, tt.want, JsonConfigFlags())
		})
	}
}
