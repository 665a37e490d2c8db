package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/sundaybot/internal/agent"
	"github.com/ashureev/sundaybot/internal/content"
	"github.com/ashureev/sundaybot/internal/domain"
)

const msgAskQuestion = "OK, please type your question about the lesson. To return to the main menu, send 'reset'."

func (e *Engine) classList() domain.Message {
	opts := make([]domain.Option, 0, len(e.cat.Classes))
	for _, c := range e.cat.Classes {
		opts = append(opts, domain.Option{ID: "lesson_class_" + c.Key, Title: c.Name})
	}
	return domain.List("Sunday School Lessons", "Please choose your class:", "View Classes", "Classes", opts...)
}

func (e *Engine) lessonActions(s *domain.LessonSession) domain.Message {
	name := s.Class
	if c, ok := e.cat.Class(s.Class); ok {
		name = c.Name
	}
	title := "this week's lesson"
	if s.Lesson != nil {
		title = s.Lesson.Title
	}
	return domain.Buttons(
		fmt.Sprintf("This week's *%s* lesson is *%s*. What would you like to do?", name, title),
		domain.Option{ID: "lesson_read", Title: "📖 Read Lesson"},
		domain.Option{ID: "lesson_ask", Title: "❓ Ask a Question"},
	)
}

func (e *Engine) lessons(ctx context.Context, s *domain.LessonSession, in domain.Inbound) outcome {
	switch s.Step {
	case domain.LessonAwaitingClass:
		return e.chooseClass(ctx, s, in)
	case domain.LessonAwaitingAction:
		return e.lessonAction(s, in)
	case domain.LessonAwaitingQuestion:
		return e.lessonQuestion(ctx, s, in)
	}
	return end(domain.Text(msgSessionLost), e.menu())
}

func (e *Engine) chooseClass(ctx context.Context, s *domain.LessonSession, in domain.Inbound) outcome {
	class, ok := e.cat.Class(strings.TrimPrefix(in.Command, "lesson_class_"))
	if !ok {
		return stay(s, domain.Text("Please choose your class from the list."), e.classList())
	}

	lesson, err := e.deps.Content.CurrentLesson(ctx, class, e.now())
	switch {
	case errors.Is(err, content.ErrNotFound):
		return stay(s, domain.Text("Sorry, I couldn't find the current lesson for your class."))
	case err != nil:
		e.logger.Error("Failed to load lesson", "user_id", in.UserID, "class", class.Key, "error", err)
		return stay(s, domain.Text(msgTechnical))
	}

	next := &domain.LessonSession{Step: domain.LessonAwaitingAction, Class: class.Key, Lesson: lesson}
	return stay(next, e.lessonActions(next))
}

func (e *Engine) lessonAction(s *domain.LessonSession, in domain.Inbound) outcome {
	switch in.Command {
	case "lesson_read", "read":
		return stay(s,
			domain.Text(content.FormatLesson(s.Lesson)),
			domain.Buttons("What next?",
				domain.Option{ID: "lesson_read", Title: "Read Again"},
				domain.Option{ID: "lesson_ask", Title: "Ask a Question"},
				domain.Option{ID: "reset", Title: "Main Menu"},
			),
		)
	case "lesson_ask", "ask":
		next := *s
		next.Step = domain.LessonAwaitingQuestion
		return stay(&next, domain.Text(msgAskQuestion))
	}
	return stay(s, domain.Text("Please choose an option using the buttons."), e.lessonActions(s))
}

// lessonQuestion answers one question and stays on the question step.
func (e *Engine) lessonQuestion(ctx context.Context, s *domain.LessonSession, in domain.Inbound) outcome {
	question := strings.TrimSpace(in.Text)
	if question == "" {
		return stay(s, domain.Text(msgAskQuestion))
	}
	if e.deps.Answerer == nil {
		return stay(s, domain.Text("Sorry, the AI thinking module is currently unavailable."))
	}

	e.send(ctx, in.UserID, []domain.Message{domain.Text("_Thinking..._ 🤔")})

	answer, err := e.deps.Answerer.Answer(ctx, question, content.FormatLesson(s.Lesson))
	switch {
	case errors.Is(err, agent.ErrUnavailable):
		return stay(s, domain.Text("Sorry, the AI thinking module is currently unavailable."))
	case err != nil:
		e.logger.Warn("Lesson question failed", "user_id", in.UserID, "class", s.Class, "error", err)
		return stay(s, domain.Text("I'm having a little trouble thinking right now. Please try again in a moment."))
	}

	return stay(s, domain.Text(answer), mainMenuButton("Finished asking questions?"))
}
