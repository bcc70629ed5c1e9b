package events

import "github.com/pkg/errors"

var ErrNoEvents = errors.New("no pending events")
