package router

import (
	"net/http"
	"strings"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/endpoints"
	"support-chat-backend/internal/api/middleware"
	authsvc "support-chat-backend/internal/service/auth"
	handoffservice "support-chat-backend/internal/service/handoff"
)

func newChatEndpoints(s *api.APIServer, paths endpoints.ChatPaths) endpoints.ChatEndpoints {
	gateway := s.Gateway()
	service := handoffservice.New(s.Database(), gateway.Publisher())
	service.SetConnectedCounter(gateway.Presence().Count)

	return endpoints.NewChatEndpoints(service, authsvc.New(s.Database()), gateway, paths)
}

func ChatAdminRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := newChatEndpoints(s, endpoints.ChatPaths{
			SessionPrefix: base + "/chat/sessions/",
		})

		mux.HandleFunc(prefix+"/chat/sessions", s.MakeHTTPHandleFunc(chatEndpoints.Sessions, middleware.ValidateAdminJWT))
		mux.HandleFunc(prefix+"/chat/sessions/", s.MakeHTTPHandleFunc(chatEndpoints.SessionMessages, middleware.ValidateAdminJWT))
		mux.HandleFunc(prefix+"/chat/take", s.MakeHTTPHandleFunc(chatEndpoints.Take, middleware.ValidateAdminJWT))
		mux.HandleFunc(prefix+"/chat/release", s.MakeHTTPHandleFunc(chatEndpoints.Release, middleware.ValidateAdminJWT))
		mux.HandleFunc(prefix+"/chat/close", s.MakeHTTPHandleFunc(chatEndpoints.Close, middleware.ValidateAdminJWT))
		mux.HandleFunc(prefix+"/chat/send", s.MakeHTTPHandleFunc(chatEndpoints.Send, middleware.ValidateAdminJWT))
		mux.HandleFunc(prefix+"/chat/stats", s.MakeHTTPHandleFunc(chatEndpoints.Stats, middleware.ValidateAdminJWT))
	}
}

func ChatPublicRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := newChatEndpoints(s, endpoints.ChatPaths{
			PublicSessionPrefix: base + "/chat/sessions/",
		})

		mux.HandleFunc(prefix+"/chat/sessions", s.MakeHTTPHandleFunc(chatEndpoints.PublicSessions))
		mux.HandleFunc(prefix+"/chat/sessions/", s.MakeHTTPHandleFunc(chatEndpoints.PublicSessionMessages))
	}
}

func ChatInternalRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := newChatEndpoints(s, endpoints.ChatPaths{
			InternalSessionPrefix: base + "/chat/sessions/",
		})

		mux.HandleFunc(prefix+"/chat/sessions/", s.MakeHTTPHandleFunc(chatEndpoints.AIMessages, middleware.ValidateServiceKey()))
	}
}

func ChatWebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		chatEndpoints := newChatEndpoints(s, endpoints.ChatPaths{})

		mux.HandleFunc(prefix+"/chat", s.MakeHTTPHandleFunc(chatEndpoints.Websocket))
	}
}
