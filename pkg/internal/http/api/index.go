package api

import (
	"github.com/gofiber/fiber/v2"
)

func MapControllers(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Name("API")
	{
		api.Get("/categories", listCategories)

		posts := api.Group("/posts").Name("Posts API")
		{
			posts.Get("/", listPost)
			posts.Get("/search", searchPost)
			posts.Get("/live", streamPost)
			posts.Post("/", createPost)
			posts.Get("/:postId", getPost)
			posts.Delete("/:postId", deletePost)
			posts.Post("/:postId/share", sharePost)
			posts.Post("/:postId/react", reactPost)
			posts.Get("/:postId/react", getPostReaction)
			posts.Get("/:postId/replies", listPostReplies)
			posts.Get("/:postId/replies/live", streamPostReplies)
			posts.Post("/:postId/replies", createPostReply)
		}

		users := api.Group("/users").Name("Users API")
		{
			users.Post("/", createUser)
			users.Get("/me", getMe)
			users.Put("/me", updateMe)
			users.Get("/me/likes", listMyLikes)
			users.Get("/me/replies", listMyReplies)
			users.Get("/:userId", getUser)
		}

		notifications := api.Group("/notifications").Name("Notifications API")
		{
			notifications.Get("/", listNotifications)
			notifications.Get("/unread", countUnreadNotifications)
			notifications.Put("/read", markAllNotificationsRead)
			notifications.Put("/:notificationId/read", markNotificationRead)
		}

		subscriptions := api.Group("/subscriptions").Name("Subscriptions API")
		{
			subscriptions.Get("/", listSubscriptions)
			subscriptions.Get("/:category", getSubscription)
			subscriptions.Post("/:category", subscribeCategory)
			subscriptions.Delete("/:category", unsubscribeCategory)
		}
	}
}
