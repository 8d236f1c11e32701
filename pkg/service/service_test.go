package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fake struct {
	name string
	log  *[]string
	err  error
}

func (f fake) Run()                           { *f.log = append(*f.log, "run "+f.name) }
func (f fake) Shutdown(context.Context) error { *f.log = append(*f.log, "stop "+f.name); return f.err }
func (f fake) String() string                 { return f.name }

func TestGroup(t *testing.T) {
	var log []string
	g := Group{}
	g.Add(fake{name: "a", log: &log}, nil, "not runnable", fake{name: "b", log: &log, err: errors.New("busy")})

	g.Start()
	err := g.Shutdown(context.Background())

	assert.Equal(t, []string{"run a", "run b", "stop b", "stop a"}, log)
	assert.ErrorContains(t, err, "failed to stop [b]: busy")
}

func TestGroupCanceled(t *testing.T) {
	var log []string
	g := Group{}
	g.Add(fake{name: "a", log: &log, err: context.Canceled})
	assert.NoError(t, g.Shutdown(context.Background()))
}
