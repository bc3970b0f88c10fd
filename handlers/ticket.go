package handlers

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"wafer-be/models"
	"wafer-be/notify"
	"wafer-be/utils"
	"wafer-be/validators"
)

var (
	ErrTicketNotFound       = errors.New("no ticket with that barcode")
	ErrTicketAlreadyClaimed = errors.New("ticket already claimed")
)

// TicketData is a ticket as shown to its holder
type TicketData struct {
	Barcode int64  `json:"barcode"`
	Type    string `json:"type"`
	Email   string `json:"email"`
}

func ticketData(tickets []models.Ticket) []TicketData {
	data := make([]TicketData, len(tickets))
	for i, t := range tickets {
		data[i] = TicketData{Barcode: t.Barcode, Type: t.Type.Name, Email: t.Email}
	}
	return data
}

// ClaimTicket attaches an unclaimed ticket to the current user
func (h *Handler) ClaimTicket(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req validators.TicketClaimRequest
	if !decode(w, r, &req) {
		return
	}

	var ticket models.Ticket
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Type").First(&ticket, "barcode = ?", req.Barcode).Error; err != nil {
			if isNotFound(err) {
				return ErrTicketNotFound
			}
			return err
		}
		if ticket.Claimed() {
			return ErrTicketAlreadyClaimed
		}
		// Guard against a concurrent claim between the read and the write
		result := tx.Model(&models.Ticket{}).
			Where("barcode = ? AND user_id IS NULL", ticket.Barcode).
			Update("user_id", user.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTicketAlreadyClaimed
		}
		ticket.UserID = &user.ID
		return nil
	})
	switch {
	case errors.Is(err, ErrTicketNotFound):
		utils.RespondValidationError(w, map[string]string{"barcode": "There is no ticket with that barcode"})
		return
	case errors.Is(err, ErrTicketAlreadyClaimed):
		utils.RespondValidationError(w, map[string]string{"barcode": "This ticket has already been claimed"})
		return
	case err != nil:
		log.Printf("Failed to claim ticket %d: %v", req.Barcode, err)
		utils.RespondInternalError(w)
		return
	}

	if h.Notifier != nil && user.Email != "" {
		err := h.Notifier.Send(r.Context(), notify.KindTicketClaimed, []string{user.Email}, map[string]interface{}{
			"Name":       user.DisplayName(),
			"Username":   user.Username,
			"TicketType": ticket.Type.Name,
			"Barcode":    ticket.Barcode,
			"Path":       "/users/" + user.Username + "/",
		})
		if err != nil {
			log.Printf("Failed to queue claim notification for ticket %d: %v", ticket.Barcode, err)
		}
	}

	utils.RespondSuccess(w, http.StatusOK, ticketData([]models.Ticket{ticket})[0], nil)
}

// MyTickets lists the tickets held by the current user
func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	var tickets []models.Ticket
	if err := h.DB.Preload("Type").Where("user_id = ?", currentUser(r).ID).Order("barcode").Find(&tickets).Error; err != nil {
		utils.RespondInternalError(w)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{"tickets": ticketData(tickets)}, nil)
}

// QuicketHook receives purchase notifications from Quicket. The shared
// secret travels in the query string.
func (h *Handler) QuicketHook(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("secret")
	if h.Settings.TicketsSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.Settings.TicketsSecret)) != 1 {
		utils.RespondForbidden(w, "Incorrect secret")
		return
	}

	var payload validators.QuicketPayload
	if !decode(w, r, &payload) {
		return
	}

	imported := 0
	for _, t := range payload.Tickets {
		created, err := ImportTicket(h.DB, t.Barcode, t.TicketType, t.AttendeeEmail)
		if err != nil {
			log.Printf("Failed to import ticket %d: %v", t.Barcode, err)
			utils.RespondInternalError(w)
			return
		}
		if created {
			imported++
		}
	}
	log.Printf("Quicket %s (%s): imported %d of %d tickets", payload.Reference, payload.Action, imported, len(payload.Tickets))

	utils.RespondText(w, http.StatusOK, "Noted\n")
}

// ImportTicket records a ticket bought through the ticketing provider.
// Known barcodes are skipped. The ticket goes to the user with that email
// address if they do not hold a ticket yet.
func ImportTicket(db *gorm.DB, barcode int64, ticketType, email string) (bool, error) {
	created := false
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Ticket{}).Where("barcode = ?", barcode).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		var tt models.TicketType
		if err := tx.Where(models.TicketType{Name: ticketType}).FirstOrCreate(&tt).Error; err != nil {
			return err
		}

		ticket := models.Ticket{Barcode: barcode, Email: email, TypeID: tt.ID}
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			var user models.User
			err := tx.Where("email = ?", email).
				Where("id NOT IN (?)", tx.Model(&models.Ticket{}).Select("user_id").Where("user_id IS NOT NULL")).
				Order("created_at").
				First(&user).Error
			switch {
			case err == nil:
				ticket.UserID = &user.ID
			case !isNotFound(err):
				return err
			}
		}

		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
