package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/teamchat-service/internal/auth"
	"github.com/fathima-sithara/teamchat-service/internal/gateway"
	"github.com/fathima-sithara/teamchat-service/internal/handlers"
	"github.com/fathima-sithara/teamchat-service/internal/middleware"
)

func Register(app *fiber.App, tokens *auth.Manager, chat *handlers.ChatHandler, presence *handlers.PresenceHandler, gw *gateway.Gateway) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", gateway.Upgrade)
	app.Get("/ws", gw.Handler())

	api := app.Group("/api/v1/teamchat", middleware.RequireAuth(tokens))

	api.Get("/", chat.ListChats)
	api.Post("/direct", chat.CreateDirectChat)
	api.Post("/group", chat.CreateGroupChat)
	api.Get("/reactions/catalog", chat.GetReactionCatalog)
	api.Get("/users/search", chat.SearchUsers)
	api.Patch("/presence", presence.SetPresence)
	api.Get("/presence/:userId", presence.GetPresence)

	api.Patch("/messages/:messageId", chat.EditMessage)
	api.Delete("/messages/:messageId", chat.DeleteMessage)
	api.Post("/messages/:messageId/reactions", chat.AddReaction)
	api.Delete("/messages/:messageId/reactions/:emoji", chat.RemoveReaction)

	api.Get("/:chatId", chat.GetChat)
	api.Patch("/:chatId", chat.UpdateChat)
	api.Get("/:chatId/members", chat.GetMembers)
	api.Post("/:chatId/members", chat.AddMember)
	api.Delete("/:chatId/members/:userId", chat.RemoveMember)
	api.Post("/:chatId/leave", chat.LeaveChat)
	api.Get("/:chatId/messages", chat.GetMessages)
	api.Post("/:chatId/messages", chat.SendMessage)
	api.Post("/:chatId/read", chat.MarkAsRead)
}
