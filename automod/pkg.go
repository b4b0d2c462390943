package automod

import (
	"github.com/spotter-social/spotter/automod/countstore"
	"github.com/spotter-social/spotter/automod/engine"
)

type Engine = engine.Engine
type Composer = engine.Composer
type Detector = engine.Detector

type Submission = engine.Submission
type ContentContext = engine.ContentContext
type Outcome = engine.Outcome
type Disposition = engine.Disposition
type ModerationResult = engine.ModerationResult
type CategoryMatch = engine.CategoryMatch
type PositiveSignal = engine.PositiveSignal

type ReviewRequest = engine.ReviewRequest
type ReviewOutcome = engine.ReviewOutcome
type ReconcileReport = engine.ReconcileReport

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier
type ContentFetcher = engine.ContentFetcher

var (
	DispositionPublish = engine.DispositionPublish
	DispositionHold    = engine.DispositionHold
	DispositionReject  = engine.DispositionReject

	ErrPending = engine.ErrPending

	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour
)
