package handler

import "github.com/wb-go/wbf/ginext"

func NewRouter(reminderHandler *ReminderHandler) *ginext.Engine {
	router := ginext.New("release")
	router.Use(MetricsMiddleware)

	router.POST("/reminders", reminderHandler.CreateReminder)
	router.GET("/reminders", reminderHandler.ListReminders)
	router.GET("/reminders/:id", reminderHandler.GetReminder)
	router.DELETE("/reminders/:id", reminderHandler.CancelReminder)
	return router
}
