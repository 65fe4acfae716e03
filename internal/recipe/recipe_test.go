package recipe

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	input := `FROM debian:12 AS base
# comment

env PATH=/usr/local/bin:/usr/bin
RUN apt-get update && \
    apt-get install -y curl
CMD ["app"]
`
	rec, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Instruction{
		{Keyword: "FROM", Args: "debian:12 AS base"},
		{Keyword: "ENV", Args: "PATH=/usr/local/bin:/usr/bin"},
		{Keyword: "RUN", Args: "apt-get update &&      apt-get install -y curl"},
		{Keyword: "CMD", Args: `["app"]`},
	}
	if diff := cmp.Diff(want, rec.Instructions); diff != "" {
		t.Fatalf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestBaseImage(t *testing.T) {
	tests := []struct {
		name    string
		recipe  string
		want    string
		wantErr error
	}{
		{"plain", "FROM alpine:3.20\nCMD [\"sh\"]\n", "alpine:3.20", nil},
		{"first FROM wins", "FROM golang:1.25 AS build\nFROM scratch\n", "golang:1.25", nil},
		{"after other lines", "LABEL a=b\nFROM ubuntu\n", "ubuntu", nil},
		{"missing", "CMD [\"sh\"]\n", "", ErrNoBase},
		{"empty FROM", "FROM\n", "", ErrNoBase},
		{"empty recipe", "", "", ErrNoBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(strings.NewReader(tt.recipe))
			if err != nil {
				t.Fatal(err)
			}
			got, err := rec.BaseImage()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BaseImage() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("BaseImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlim(t *testing.T) {
	rec, err := Parse(strings.NewReader(`FROM nginx:1.27
ENV APP=1
ADD file:abc in /
COPY site/ /usr/share/nginx/html
RUN rm -rf /var/cache
EXPOSE 80/tcp
CMD ["nginx","-g","daemon off;"]
`))
	if err != nil {
		t.Fatal(err)
	}

	slim := rec.Slim("rootfs.tar")

	want := `FROM nginx:1.27
ENV APP=1
EXPOSE 80/tcp
CMD ["nginx","-g","daemon off;"]
ADD rootfs.tar /
`
	if diff := cmp.Diff(want, slim.String()); diff != "" {
		t.Fatalf("Slim() mismatch (-want +got):\n%s", diff)
	}
	if len(rec.Instructions) != 7 {
		t.Fatalf("Slim() modified its receiver")
	}
}

func TestInstructionCommand(t *testing.T) {
	tests := []struct {
		args    string
		want    []string
		wantErr bool
	}{
		{`["nginx","-g","daemon off;"]`, []string{"nginx", "-g", "daemon off;"}, false},
		{`echo hello`, []string{"/bin/sh", "-c", "echo hello"}, false},
		{``, nil, false},
		{`["unterminated"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			got, err := Instruction{Keyword: "CMD", Args: tt.args}.Command()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Command() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Command() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstructionKeyValues(t *testing.T) {
	tests := []struct {
		args    string
		want    [][2]string
		wantErr bool
	}{
		{`A=1 B=2`, [][2]string{{"A", "1"}, {"B", "2"}}, false},
		{`MSG="hello world" X=y`, [][2]string{{"MSG", "hello world"}, {"X", "y"}}, false},
		{`"org.example.name"="my app"`, [][2]string{{"org.example.name", "my app"}}, false},
		{`PATH /usr/local/bin:/usr/bin`, [][2]string{{"PATH", "/usr/local/bin:/usr/bin"}}, false},
		{`GREETING hello there`, [][2]string{{"GREETING", "hello there"}}, false},
		{`A=1 broken`, nil, true},
		{`A="open`, nil, true},
		{``, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			got, err := Instruction{Keyword: "ENV", Args: tt.args}.KeyValues()
			if (err != nil) != tt.wantErr {
				t.Fatalf("KeyValues() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("KeyValues() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstructionWords(t *testing.T) {
	got, err := Instruction{Keyword: "VOLUME", Args: `["/data", "/logs"]`}.Words()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/data", "/logs"}, got); diff != "" {
		t.Fatalf("Words() mismatch (-want +got):\n%s", diff)
	}

	got, err = Instruction{Keyword: "EXPOSE", Args: `80/tcp  443/tcp`}.Words()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"80/tcp", "443/tcp"}, got); diff != "" {
		t.Fatalf("Words() mismatch (-want +got):\n%s", diff)
	}
}
