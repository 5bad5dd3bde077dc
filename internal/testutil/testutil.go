// Package testutil 测试用的数据库和用户构造
package testutil

import (
	"context"
	"strings"
	"testing"

	"peoplegrid/config"
	"peoplegrid/internal/model"
	"peoplegrid/pkg/db"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB 内存SQLite，已完成迁移；单连接保证所有查询落在同一个库上
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", MaxIdle: 1, MaxOpen: 1})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb, model.All()...))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// CreateUser 直接写入一个用户，邮箱与注册流程一样存为小写
func CreateUser(t testing.TB, gdb *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		Email:        strings.ToLower(username) + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, gdb.WithContext(context.Background()).Create(u).Error)
	return u
}
