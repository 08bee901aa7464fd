// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/config"
	"github.com/gorse-io/bookrec/recommend"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RestServer implements a REST-ful API server over the current recommendation engine.
type RestServer struct {
	Holder     *recommend.Holder
	Config     *config.Config
	WebService *restful.WebService
	container  *restful.Container
	cache      *ttlcache.Cache[string, any]
}

func NewRestServer(holder *recommend.Holder, cfg *config.Config) *RestServer {
	s := &RestServer{
		Holder:     holder,
		Config:     cfg,
		WebService: new(restful.WebService),
	}
	if cfg.Recommend.CacheSize > 0 {
		s.cache = ttlcache.New(
			ttlcache.WithTTL[string, any](cfg.Recommend.CacheTTL),
			ttlcache.WithCapacity[string, any](cfg.Recommend.CacheSize),
		)
	}
	s.CreateWebService()
	s.container = restful.NewContainer()
	s.container.Add(s.WebService)
	s.container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: s.container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}))
	s.container.Handle("/metrics", promhttp.Handler())
	return s
}

// Handler returns the HTTP handler of all routes.
func (s *RestServer) Handler() http.Handler {
	return s.container
}

// Swap publishes a new engine and drops cached responses of older engines.
func (s *RestServer) Swap(engine *recommend.Engine) int64 {
	version := s.Holder.Swap(engine)
	if s.cache != nil {
		s.cache.DeleteAll()
	}
	return version
}

// RequestIdFilter tags each response with the request id of the client or a new one.
func RequestIdFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := req.HeaderParameter(log.RequestIdHeader)
	if requestId == "" {
		requestId = uuid.New().String()
	}
	resp.Header().Set(log.RequestIdHeader, requestId)
	chain.ProcessFilter(req, resp)
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	RequestSeconds.WithLabelValues(req.SelectedRoutePath()).Observe(time.Since(start).Seconds())
	log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(RequestIdFilter)
	ws.Filter(LogFilter)

	ws.Route(ws.POST("/user-based/recommend").To(s.recommendByUser).
		Doc("Recommend books read by similar users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Reads(UserRequest{}).
		Returns(http.StatusOK, "OK", UserResponse{}).
		Returns(http.StatusBadRequest, "Bad Request", ErrorResponse{}).
		Returns(http.StatusNotFound, "Not Found", ErrorResponse{}).
		Returns(http.StatusServiceUnavailable, "Service Unavailable", ErrorResponse{}).
		Writes(UserResponse{}))
	ws.Route(ws.POST("/item-based/recommend").To(s.recommendByItem).
		Doc("Recommend books similar to a book.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Reads(ItemRequest{}).
		Returns(http.StatusOK, "OK", ItemResponse{}).
		Returns(http.StatusBadRequest, "Bad Request", ErrorResponse{}).
		Returns(http.StatusNotFound, "Not Found", ErrorResponse{}).
		Returns(http.StatusServiceUnavailable, "Service Unavailable", ErrorResponse{}).
		Writes(ItemResponse{}))
	ws.Route(ws.GET("/search/users/{prefix}").To(s.searchUsers).
		Doc("Search user ids by prefix.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"search"}).
		Param(ws.PathParameter("prefix", "prefix of user ids").DataType("string")).
		Writes(SearchResponse{}))
	ws.Route(ws.GET("/search/books/{prefix}").To(s.searchBooks).
		Doc("Search ISBNs by prefix.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"search"}).
		Param(ws.PathParameter("prefix", "prefix of ISBNs").DataType("string")).
		Writes(SearchResponse{}))
	ws.Route(ws.GET("/health").To(s.health).
		Doc("Get the state of the loaded model.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", HealthResponse{}).
		Returns(http.StatusServiceUnavailable, "Service Unavailable", ErrorResponse{}).
		Writes(HealthResponse{}))
}

type UserRequest struct {
	UserId string `json:"user_id"`
	K      *int   `json:"k,omitempty"`
}

type ItemRequest struct {
	ISBN string `json:"isbn"`
	K    *int   `json:"k,omitempty"`
}

type UserResponse struct {
	Success bool `json:"success"`
	*recommend.UserRecommendations
}

type ItemResponse struct {
	Success bool `json:"success"`
	*recommend.ItemRecommendations
}

type SearchResponse struct {
	Results []string `json:"results"`
}

type HealthResponse struct {
	Success   bool      `json:"success"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Users     int       `json:"users"`
	Items     int       `json:"items"`
	Ratings   int       `json:"ratings"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *RestServer) k(k *int) int {
	if k == nil {
		return s.Config.Recommend.DefaultK
	}
	return *k
}

// cached returns a cached response of the current engine or computes a new one.
func (s *RestServer) cached(key string, compute func() (any, error)) (any, error) {
	if s.cache == nil {
		return compute()
	}
	key = fmt.Sprintf("%d/%s", s.Holder.Version(), key)
	if item := s.cache.Get(key); item != nil {
		CacheHits.Inc()
		return item.Value(), nil
	}
	value, err := compute()
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, value, ttlcache.DefaultTTL)
	return value, nil
}

func (s *RestServer) recommendByUser(request *restful.Request, response *restful.Response) {
	var req UserRequest
	if err := request.ReadEntity(&req); err != nil {
		BadRequest(response, errors.NewNotValid(err, "request body"))
		return
	}
	if req.UserId == "" {
		BadRequest(response, errors.NotValidf("empty user_id"))
		return
	}
	k := s.k(req.K)
	result, err := s.cached(fmt.Sprintf("user/%d/%s", k, req.UserId), func() (any, error) {
		engine, err := s.Holder.Engine()
		if err != nil {
			return nil, errors.Trace(err)
		}
		recommendations, err := engine.RecommendByUser(req.UserId, k)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return UserResponse{Success: true, UserRecommendations: recommendations}, nil
	})
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, result)
}

func (s *RestServer) recommendByItem(request *restful.Request, response *restful.Response) {
	var req ItemRequest
	if err := request.ReadEntity(&req); err != nil {
		BadRequest(response, errors.NewNotValid(err, "request body"))
		return
	}
	if req.ISBN == "" {
		BadRequest(response, errors.NotValidf("empty isbn"))
		return
	}
	k := s.k(req.K)
	result, err := s.cached(fmt.Sprintf("item/%d/%s", k, req.ISBN), func() (any, error) {
		engine, err := s.Holder.Engine()
		if err != nil {
			return nil, errors.Trace(err)
		}
		recommendations, err := engine.RecommendByItem(req.ISBN, k)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return ItemResponse{Success: true, ItemRecommendations: recommendations}, nil
	})
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, result)
}

func (s *RestServer) searchUsers(request *restful.Request, response *restful.Response) {
	engine, err := s.Holder.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	results := engine.SearchUsers(request.PathParameter("prefix"), s.Config.Recommend.SearchLimit)
	Ok(response, SearchResponse{Results: results})
}

func (s *RestServer) searchBooks(request *restful.Request, response *restful.Response) {
	engine, err := s.Holder.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	results := engine.SearchItems(request.PathParameter("prefix"), s.Config.Recommend.SearchLimit)
	Ok(response, SearchResponse{Results: results})
}

func (s *RestServer) health(_ *restful.Request, response *restful.Response) {
	engine, err := s.Holder.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	snapshot := engine.Snapshot()
	Ok(response, HealthResponse{
		Success:   true,
		Version:   s.Holder.Version(),
		Timestamp: snapshot.Timestamp,
		Users:     snapshot.Store.CountUsers(),
		Items:     snapshot.Store.CountItems(),
		Ratings:   snapshot.Store.Count(),
	})
}

// Error writes an error with the status code of its kind.
func Error(response *restful.Response, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.NotSupported):
		BadRequest(response, err)
	case errors.Is(err, errors.NotYetAvailable):
		ServiceUnavailable(response, err)
	default:
		InternalServerError(response, err)
	}
}

func writeError(response *restful.Response, status int, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteHeaderAndJson(status, ErrorResponse{Error: err.Error()}, restful.MIME_JSON); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	log.ResponseLogger(response).Warn("bad request", zap.Error(err))
	writeError(response, http.StatusBadRequest, err)
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	writeError(response, http.StatusNotFound, err)
}

// ServiceUnavailable returns an error while no model is loaded.
func ServiceUnavailable(response *restful.Response, err error) {
	log.ResponseLogger(response).Warn("service unavailable", zap.Error(err))
	writeError(response, http.StatusServiceUnavailable, err)
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	writeError(response, http.StatusInternalServerError, err)
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
