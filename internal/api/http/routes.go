package http

import (
	"github.com/hb-chen/flowdesign/pkg/grpc/gateway"
)

// Register mounts every editor route on gw
func (h *Handlers) Register(gw *gateway.Gateway) {
	root := gw.Group("")
	root.GET("/health", h.HealthCheck)

	v1 := gw.Group("/api/v1")
	v1.GET("/graph", h.GetGraph)
	v1.PUT("/graph", h.PutGraph)
	v1.GET("/keytable", h.GetKeyTable)
	v1.GET("/keytable/globals", h.GetGlobalKeys)
	v1.GET("/topology", h.GetTopology)
	v1.GET("/events", h.HandleEvents)

	v1.POST("/nodes", h.CreateNode)
	v1.GET("/nodes/{id}", h.GetNode)
	v1.PUT("/nodes/{id}/data", h.SyncNodeData)
	v1.DELETE("/nodes/{id}", h.DeleteNode)
	v1.POST("/nodes/{id}/toggle", h.ToggleNode)
	v1.POST("/nodes/{id}/size", h.ReportSize)
	v1.GET("/nodes/{id}/keytable", h.GetNodeKeyTable)
	v1.POST("/nodes/{id}/keytable", h.SetKeyTable)

	v1.POST("/nodes/{id}/categories", h.AddCategory)
	v1.PUT("/nodes/{id}/categories/{branch}", h.RenameCategory)
	v1.DELETE("/nodes/{id}/categories/{branch}", h.DeleteCategory)
	v1.POST("/nodes/{id}/conditions", h.AddCondition)
	v1.PUT("/nodes/{id}/conditions/{branch}", h.RenameCondition)
	v1.DELETE("/nodes/{id}/conditions/{branch}", h.DeleteCondition)

	v1.POST("/edges", h.CreateEdge)
	v1.DELETE("/edges/{id}", h.DeleteEdge)

	v1.GET("/validations", h.ListValidations)
	v1.GET("/validations/{id}", h.GetValidations)
	v1.DELETE("/validations/{id}", h.ClearValidation)
	v1.POST("/validations/{id}/input", h.ValidateNode)
	v1.POST("/validations/{id}/conditions", h.ValidateCondition)
	v1.PUT("/validations/{id}/{domain}", h.UpdateValidation)
	v1.POST("/validations/flush", h.FlushValidations)
}
