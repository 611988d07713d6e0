package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidInput)
	suite.NotNil(err)
	suite.Equal(ErrInvalidInput, err.Code)
	suite.Equal("输入必须为单个字符", err.Message)
	suite.Empty(err.Details)

	// 带详情的错误
	err = New(ErrSerialPortOpen, "/dev/ttyACM0")
	suite.Equal("/dev/ttyACM0", err.Details)

	// 多个详情
	err = New(ErrSerialPortOpen, "打开失败", "端口: COM3", "波特率: 1200")
	suite.Equal("打开失败; 端口: COM3; 波特率: 1200", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidInput, "收到 %d 个字符", 2)
	suite.Equal(ErrInvalidInput, err.Code)
	suite.Equal("收到 2 个字符", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("device not configured")
	wrappedErr := Wrap(originalErr, ErrSerialPortWrite)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrSerialPortWrite, wrappedErr.Code)
	suite.Equal("device not configured", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	// 包装nil错误
	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError，保留原始错误码
	appErr := New(ErrSerialClosed, "端口已关闭")
	wrappedAppErr := Wrap(appErr, ErrSerialPortRead, "读取")
	suite.Equal(ErrSerialClosed, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "读取")
}

// 测试格式化错误包装
func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("no such file or directory")
	wrappedErr := Wrapf(originalErr, ErrSerialPortOpen, "串口 %s", "/dev/ttyUSB9")
	suite.Equal(ErrSerialPortOpen, wrappedErr.Code)
	suite.Equal("串口 /dev/ttyUSB9", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrStateChangeFailed)
	suite.True(Is(err, ErrStateChangeFailed))
	suite.False(Is(err, ErrInvalidInput))
	suite.False(Is(nil, ErrStateChangeFailed))
	suite.False(Is(errors.New("标准错误"), ErrUnknown))

	// fmt.Errorf包装后仍可识别
	wrapped := fmt.Errorf("send command: %w", New(ErrSerialPortWrite))
	suite.True(Is(wrapped, ErrSerialPortWrite))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrSerialPortRead, GetCode(New(ErrSerialPortRead)))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{
		Code:    ErrNotFound,
		Message: "资源未找到",
	}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "session: abc"
	suite.Equal("[1002] 资源未找到: session: abc", err.Error())
}

// 测试Unwrap
func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrUnknown)
	suite.Equal(originalErr, wrappedErr.Unwrap())
	suite.True(errors.Is(wrappedErr, originalErr))

	suite.Nil(New(ErrUnknown).Unwrap())
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrInvalidInput, 400},
		{ErrExitCommand, 400},
		{ErrNotFound, 404},
		{ErrTimeout, 408},
		{ErrNotImplemented, 501},
		{ErrSerialPortWrite, 503},
		{ErrDatabaseConnect, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrTimeout, ErrSerialPortRead, ErrDatabaseConnect} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}
	for _, code := range []ErrorCode{ErrInvalidInput, ErrSerialPortOpen, ErrStateChangeFailed} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}
	suite.False(IsRetryable(nil))
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	for _, code := range []ErrorCode{ErrSerialPortOpen, ErrPortNotFound, ErrConfigLoad, ErrConfigParse} {
		suite.True(IsCritical(New(code)), "错误码 %d 应该是严重错误", code)
	}
	for _, code := range []ErrorCode{ErrInvalidInput, ErrStateChangeFailed, ErrTimeout} {
		suite.False(IsCritical(New(code)), "错误码 %d 不应该是严重错误", code)
	}
	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrInvalidInput, "AB")
	response := NewErrorResponse(err)

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Greater(response.Timestamp, int64(0))

	// 调用栈只写日志，不返回给客户端
	data, jsonErr := json.Marshal(response)
	suite.Require().NoError(jsonErr)
	suite.NotContains(string(data), "stack")
	suite.NotContains(string(data), "errors.go")
	suite.Contains(string(data), `"code":2000`)
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
