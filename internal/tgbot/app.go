// Package tgbot is the Telegram front-end: trainees and coaches register
// through button flows and club admins get the camp list and the report.
package tgbot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"club-registration/internal/api"
	"club-registration/internal/config"
	"club-registration/internal/dates"
	"club-registration/internal/models"
	"club-registration/internal/registration"
	"club-registration/internal/reports"
	"club-registration/internal/sessions"
)

// sender is the part of *tgbotapi.BotAPI the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Deps struct {
	API           *api.Client
	Options       *sessions.Service
	Registrations *registration.Service
	Club          config.Club
	Logger        *slog.Logger
	Now           func() time.Time
}

type App struct {
	cfg config.Config
	d   Deps
	api *tgbotapi.BotAPI
	bot sender
	log *slog.Logger

	// per-user flow state; updates are handled one at a time
	state map[int64]userState
}

const (
	flowTrainee = "trainee"
	flowCoach   = "coach"
)

// Steps of the registration flows.
const (
	stepFirstName = iota + 1
	stepLastName
	stepAgeGroup
	stepSession
	stepConfirm
)

type userState struct {
	Flow string
	Step int
	Data map[string]string
	// Choices are the labels behind the numbered buttons last shown.
	Choices []string
}

func New(cfg config.Config, d Deps) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	a := newApp(cfg, b, d)
	a.api = b
	return a, nil
}

func newApp(cfg config.Config, bot sender, d Deps) *App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &App{
		cfg:   cfg,
		d:     d,
		bot:   bot,
		log:   d.Logger,
		state: map[int64]userState{},
	}
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.api.GetUpdatesChan(u)
	defer a.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := a.handleMessage(ctx, upd.Message); err != nil {
					a.log.Error("handle message", "error", err)
				}
			} else if upd.CallbackQuery != nil {
				if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
					a.log.Error("handle callback", "error", err)
				}
			}
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	tgID := m.From.ID
	txt := strings.TrimSpace(m.Text)

	switch {
	case strings.HasPrefix(txt, "/start"):
		a.state[tgID] = userState{Flow: flowTrainee, Step: stepFirstName, Data: map[string]string{}}
		return a.SendText(tgID, "Tervetuloa! Ilmoittaudu harjoitukseen. Kirjoita etunimesi:")
	case strings.HasPrefix(txt, "/coach"):
		a.state[tgID] = userState{Flow: flowCoach, Step: stepFirstName, Data: map[string]string{}}
		return a.SendText(tgID, "Valmentajan kirjaus. Kirjoita etunimesi:")
	case strings.HasPrefix(txt, "/admin"):
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Ei käyttöoikeutta.")
		}
		delete(a.state, tgID)
		return a.showAdminMenu(tgID)
	case strings.HasPrefix(txt, "/cancel"):
		delete(a.state, tgID)
		return a.SendText(tgID, "Peruttu. Aloita uudelleen: /start")
	}

	st := a.state[tgID]
	if st.Flow != "" {
		return a.handleFlowInput(ctx, tgID, txt, st)
	}
	return a.SendText(tgID, "Ilmoittaudu harjoitukseen: /start\nValmentajat: /coach")
}

// handleFlowInput takes the typed name fields; everything else is chosen
// with buttons.
func (a *App) handleFlowInput(ctx context.Context, tgID int64, txt string, st userState) error {
	if st.Data == nil {
		st.Data = map[string]string{}
	}
	switch st.Step {
	case stepFirstName:
		if txt == "" {
			return a.SendText(tgID, "Etunimi ei voi olla tyhjä. Kirjoita uudelleen:")
		}
		st.Data["first_name"] = txt
		st.Step = stepLastName
		a.state[tgID] = st
		return a.SendText(tgID, "Kirjoita sukunimesi:")
	case stepLastName:
		if txt == "" {
			return a.SendText(tgID, "Sukunimi ei voi olla tyhjä. Kirjoita uudelleen:")
		}
		st.Data["last_name"] = txt
		if st.Flow == flowCoach {
			return a.showSessionPicker(ctx, tgID, st)
		}
		return a.showAgeGroupPicker(tgID, st)
	default:
		return a.SendText(tgID, "Valitse painikkeista tai aloita alusta: /start")
	}
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	tgID := q.From.ID
	data := q.Data

	// ack
	cb := tgbotapi.NewCallback(q.ID, "")
	_, _ = a.bot.Request(cb)

	if strings.HasPrefix(data, "u:") {
		return a.handleUserCallback(ctx, tgID, data)
	}
	if strings.HasPrefix(data, "a:") {
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Ei käyttöoikeutta.")
		}
		return a.handleAdminCallback(ctx, tgID, data)
	}
	return nil
}

func (a *App) handleUserCallback(ctx context.Context, tgID int64, data string) error {
	st := a.state[tgID]
	if st.Flow == "" {
		return a.SendText(tgID, "Istunto on vanhentunut. Aloita uudelleen: /start")
	}

	switch {
	case data == "u:cancel":
		delete(a.state, tgID)
		return a.SendText(tgID, "Peruttu. Aloita uudelleen: /start")
	case data == "u:confirm" && st.Step == stepConfirm:
		return a.submit(ctx, tgID, st)
	case strings.HasPrefix(data, "u:age:") && st.Step == stepAgeGroup:
		choice, ok := pick(st, strings.TrimPrefix(data, "u:age:"))
		if !ok {
			return a.SendText(tgID, "Valinta ei ole enää voimassa. Aloita uudelleen: /start")
		}
		st.Data["age_group"] = choice
		return a.showSessionPicker(ctx, tgID, st)
	case strings.HasPrefix(data, "u:pick:") && st.Step == stepSession:
		choice, ok := pick(st, strings.TrimPrefix(data, "u:pick:"))
		if !ok {
			return a.SendText(tgID, "Valinta ei ole enää voimassa. Aloita uudelleen: /start")
		}
		st.Data["session"] = choice
		return a.showConfirm(tgID, st)
	}
	return nil
}

// pick resolves a numbered button against the choices shown with it.
func pick(st userState, idx string) (string, bool) {
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(st.Choices) {
		return "", false
	}
	return st.Choices[i], true
}

func choiceKeyboard(prefix string, choices []string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	for i, c := range choices {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c, prefix+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Peruuta", "u:cancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ---------- Screens ----------

func (a *App) showAgeGroupPicker(tgID int64, st userState) error {
	st.Step = stepAgeGroup
	st.Choices = append([]string{}, a.d.Club.AgeGroups...)
	a.state[tgID] = st

	msg := tgbotapi.NewMessage(tgID, "Valitse ikäryhmä:")
	msg.ReplyMarkup = choiceKeyboard("u:age:", st.Choices)
	_, err := a.bot.Send(msg)
	return err
}

// showSessionPicker offers today's options to trainees and the coaching
// groups to coaches.
func (a *App) showSessionPicker(ctx context.Context, tgID int64, st userState) error {
	var choices []string
	if st.Flow == flowCoach {
		choices = a.d.Options.CoachOptions()
	} else {
		choices = a.d.Options.TodayOptions(ctx)
	}
	if len(choices) == 0 {
		delete(a.state, tgID)
		return a.SendText(tgID, "Tänään ei ole valittavia harjoituksia.")
	}
	st.Step = stepSession
	st.Choices = choices
	a.state[tgID] = st

	msg := tgbotapi.NewMessage(tgID, "Valitse harjoitus ("+a.d.Options.Today()+"):")
	msg.ReplyMarkup = choiceKeyboard("u:pick:", choices)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) showConfirm(tgID int64, st userState) error {
	st.Step = stepConfirm
	st.Choices = nil
	a.state[tgID] = st

	text := fmt.Sprintf("Tarkista tiedot:\nNimi: %s %s\n", st.Data["first_name"], st.Data["last_name"])
	if g := st.Data["age_group"]; g != "" {
		text += "Ikäryhmä: " + g + "\n"
	}
	text += "Harjoitus: " + st.Data["session"]

	msg := tgbotapi.NewMessage(tgID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Vahvista", "u:confirm"),
			tgbotapi.NewInlineKeyboardButtonData("Peruuta", "u:cancel"),
		),
	)
	_, err := a.bot.Send(msg)
	return err
}

// ---------- Actions ----------

func (a *App) submit(ctx context.Context, tgID int64, st userState) error {
	role := models.RoleTrainee
	if st.Flow == flowCoach {
		role = models.RoleCoach
	}
	cand := models.Candidate{
		FirstName:   st.Data["first_name"],
		LastName:    st.Data["last_name"],
		AgeGroup:    st.Data["age_group"],
		SessionName: st.Data["session"],
		Date:        a.d.Now(),
	}
	delete(a.state, tgID)

	res, err := a.d.Registrations.Submit(ctx, role, cand)
	if err != nil {
		a.log.Warn("telegram registration failed", "tg_id", tgID, "role", role, "error", err)
	}
	return a.SendText(tgID, res.Outcome.Message())
}

// ---------- Admin ----------

func (a *App) showAdminMenu(tgID int64) error {
	msg := tgbotapi.NewMessage(tgID, "Ylläpito")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Leirit", "a:camps"),
			tgbotapi.NewInlineKeyboardButtonData("Raportti", "a:report"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Päivitä välimuisti", "a:refresh"),
		),
	)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) handleAdminCallback(ctx context.Context, tgID int64, data string) error {
	switch data {
	case "a:camps":
		return a.showCamps(ctx, tgID)
	case "a:report":
		return a.sendReport(ctx, tgID)
	case "a:refresh":
		n := a.d.API.Cache().Invalidate("")
		a.d.API.Prefetch(context.WithoutCancel(ctx))
		return a.SendText(tgID, fmt.Sprintf("Välimuisti tyhjennetty (%d).", n))
	}
	return nil
}

func (a *App) showCamps(ctx context.Context, tgID int64) error {
	camps, err := a.d.API.ListCamps(ctx, true)
	if err != nil {
		return err
	}
	if len(camps) == 0 {
		return a.SendText(tgID, "Leirejä ei ole.")
	}
	var b strings.Builder
	b.WriteString("Leirit:")
	for _, c := range camps {
		fmt.Fprintf(&b, "\n\n%s (%s)", c.Name, c.Teacher)
		for _, d := range c.Days {
			fmt.Fprintf(&b, "\n  %s: %d sessiota", d.Date, d.Sessions)
		}
	}
	return a.SendText(tgID, b.String())
}

// sendReport sends a short summary followed by the full report as CSV.
func (a *App) sendReport(ctx context.Context, tgID int64) error {
	rep, err := reports.Load(ctx, a.d.API, a.d.Club.AgeGroups, a.d.Club.HoursPerSession)
	if err != nil {
		return err
	}
	if err := a.SendText(tgID, reportSummary(rep)); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := reports.WriteCSV(&buf, rep); err != nil {
		return err
	}
	name := "suoritemaarat_" + dates.Day(a.d.Now(), a.d.Options.Location()) + ".csv"
	doc := tgbotapi.NewDocument(tgID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	_, err = a.bot.Send(doc)
	return err
}

func reportSummary(rep reports.Report) string {
	var b strings.Builder
	b.WriteString("Suoritemäärät")
	for _, g := range rep.Groups {
		fmt.Fprintf(&b, "\n%s: %d hlö, %d suoritusta", g.AgeGroup, g.TotalPersons, g.TotalParticipations)
	}
	fmt.Fprintf(&b, "\nValmentajia: %d, ohjaustunteja: %s", len(rep.Coaches), strconv.FormatFloat(rep.TotalHours, 'f', -1, 64))
	return b.String()
}
