// Package basehdl chứa các helper response dùng chung cho mọi domain handler.
package basehdl

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v3"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
)

// JSONResponse trả về JSON response với Content-Type: application/json; charset=utf-8
func JSONResponse(c fiber.Ctx, statusCode int, data interface{}) error {
	c.Set("Content-Type", "application/json; charset=utf-8")
	return c.Status(statusCode).JSON(data)
}

// SafeHandlerWrapper bọc handler với recover; panic được trả về client dưới dạng lỗi hệ thống
func SafeHandlerWrapper(c fiber.Ctx, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithRequest(c).WithField("panic", r).WithField("stack", string(debug.Stack())).
				Error("Panic trong handler")
			err = HandleResponse(c, nil, common.NewError(
				common.ErrCodeInternalServer,
				fmt.Sprintf("Lỗi hệ thống không mong muốn: %v", r),
				common.StatusInternalServerError,
				nil,
			))
		}
	}()
	return fn()
}

// HandleResponse chuẩn hóa response: {code, message, data, status}, lỗi thì {code, message, details, status}
func HandleResponse(c fiber.Ctx, data interface{}, err error) error {
	if err != nil {
		var customErr *common.Error
		if errors.As(err, &customErr) {
			if customErr.StatusCode >= common.StatusInternalServerError {
				logger.WithRequest(c).WithError(err).Error("Request thất bại")
			}
			return JSONResponse(c, customErr.StatusCode, fiber.Map{
				"code":    customErr.Code.Code,
				"message": customErr.Message,
				"details": customErr.Details,
				"status":  "error",
			})
		}
		logger.WithRequest(c).WithError(err).Error("Request thất bại")
		return JSONResponse(c, common.StatusInternalServerError, fiber.Map{
			"code":    common.ErrCodeInternalServer.Code,
			"message": err.Error(),
			"status":  "error",
		})
	}

	return JSONResponse(c, common.StatusOK, fiber.Map{
		"code":    common.StatusOK,
		"message": common.MsgSuccess,
		"data":    data,
		"status":  "success",
	})
}

// HandleValidationError trả về 400 với message của lỗi parse / validate input
func HandleValidationError(c fiber.Ctx, err error) error {
	return JSONResponse(c, common.StatusBadRequest, fiber.Map{
		"code":    common.ErrCodeValidationInput.Code,
		"message": common.MsgValidationError,
		"details": err.Error(),
		"status":  "error",
	})
}
