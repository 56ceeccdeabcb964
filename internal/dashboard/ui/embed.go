// Package ui 内嵌仪表盘前端，单页 HTML 直接打进二进制。
package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var content embed.FS

// StaticFS 把嵌入的 static 目录暴露成 http.FileSystem，挂到 /static 路由。
func StaticFS() (http.FileSystem, error) {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		return nil, err
	}
	return http.FS(sub), nil
}

// Index 返回仪表盘首页的完整 HTML。
func Index() ([]byte, error) {
	return content.ReadFile("static/index.html")
}
