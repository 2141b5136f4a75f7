package session

import "github.com/mcdev12/sketchturn/go/internal/models"

// StrokeLog is the append-only record of the strokes on the current canvas.
type StrokeLog struct {
	strokes []models.Stroke
}

func NewStrokeLog() *StrokeLog {
	return &StrokeLog{}
}

func (l *StrokeLog) Append(stroke models.Stroke) {
	l.strokes = append(l.strokes, stroke)
}

func (l *StrokeLog) Clear() {
	l.strokes = nil
}

// All returns the strokes in the order they were drawn.
func (l *StrokeLog) All() []models.Stroke {
	return append([]models.Stroke(nil), l.strokes...)
}

func (l *StrokeLog) Len() int {
	return len(l.strokes)
}
