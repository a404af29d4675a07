/**
 * @description
 * User API Handlers.
 * Handles user synchronization, profile retrieval and wallet linking.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - gorm.io/gorm
 */

package handlers

import (
	"strings"
	"time"

	"github.com/foresight-project/backend/internal/api/middleware"
	"github.com/foresight-project/backend/internal/logger"
	"github.com/foresight-project/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserHandler struct {
	DB *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// SyncUserRequest defines payload for syncing user
type SyncUserRequest struct {
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"` // Wallet used to sign resolution proofs
	ClearWallet   bool   `json:"clear_wallet"`   // Explicit disconnect request
}

// SyncUser ensures the user exists in the database
// POST /api/v1/user/sync
func (h *UserHandler) SyncUser(c *fiber.Ctx) error {
	// 1. Get Subject ID from context
	subjectID, err := middleware.GetSubjectID(c)
	if err != nil {
		logger.Error("SyncUser: Failed to get subject ID from context: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	// 2. Parse Body
	var req SyncUserRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("SyncUser: Failed to parse request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}

	// 3. Upsert User
	now := time.Now()
	requestedWallet := strings.TrimSpace(req.WalletAddress)
	shouldUpdateWallet := req.ClearWallet || requestedWallet != ""
	nextWallet := requestedWallet
	if req.ClearWallet {
		nextWallet = ""
	}

	user := models.User{
		SubjectID: subjectID,
		Email:     req.Email,
		// The ledger account handle defaults to the subject ID and never changes.
		Account:       subjectID,
		WalletAddress: nextWallet,
		UpdatedAt:     now,
	}

	updates := map[string]interface{}{
		"email":      req.Email,
		"updated_at": now,
	}
	if shouldUpdateWallet {
		updates["wallet_address"] = nextWallet
	}

	// Use Postgres ON CONFLICT to update email/wallet if changed
	result := h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&user)

	if result.Error != nil {
		logger.Error("SyncUser: Database error during upsert: %v", result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to sync user",
			"details": result.Error.Error(),
		})
	}

	// 4. Fetch full user to return
	var updatedUser models.User
	if err := h.DB.Where("subject_id = ?", subjectID).First(&updatedUser).Error; err != nil {
		logger.Error("SyncUser: Failed to fetch user after upsert: %v", err)
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found after sync"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch synced user",
			"details": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(updatedUser)
}

// GetMe returns the current authenticated user
// GET /api/v1/user/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	subjectID, err := middleware.GetSubjectID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var user models.User
	if err := h.DB.Where("subject_id = ?", subjectID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.Status(fiber.StatusOK).JSON(user)
}
