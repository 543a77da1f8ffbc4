package server

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"mime"
	"net/http"
	_ "net/http/pprof"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/fatih/structs"
	"github.com/getsentry/sentry-go"
	"github.com/julienschmidt/httprouter"

	"tether/logger"
	. "tether/server/errors"
	"tether/server/mem"
	"tether/server/noti"
	"tether/server/pg"
	"tether/server/record"
	"tether/server/schema"
	"tether/server/schema/description"
	"tether/utils"
)

type TetherApp struct {
	router *httprouter.Router
}

func GetApp() *TetherApp {
	return &TetherApp{router: httprouter.New()}
}

func (app *TetherApp) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	app.router.ServeHTTP(w, req)
}

//Tether server description
type TetherServer struct {
	addr, port, root string
	s                *http.Server
}

func New(host, port, urlPrefix string) *TetherServer {
	return &TetherServer{addr: host, port: port, root: urlPrefix}
}

func (ts *TetherServer) SetAddr(a string) {
	ts.addr = a
}

func (ts *TetherServer) SetPort(p string) {
	ts.port = p
}

func (ts *TetherServer) SetRoot(r string) {
	ts.root = r
}

func (ts *TetherServer) Setup(config *utils.AppConfig) *http.Server {
	app := GetApp()

	descriptionSyncer := schema.GetDescriptionSyncer(config)
	schemaStore := schema.NewStore(descriptionSyncer)

	var registry record.Registry
	if config.DbConnectionUrl != "" {
		db, err := pg.NewDbConnection(config.DbConnectionUrl)
		if err != nil {
			logger.Error("Failed to create a database connection: %s", err.Error())
			panic(err)
		}
		registry = pg.NewStore(db, schemaStore)
	} else {
		registry = mem.NewStore(schemaStore)
	}
	linker := record.NewLinker(registry)

	var failureEvents chan *noti.Event
	if config.NotificationUrl != "" {
		if notifier, err := noti.NewRestNotifier(config.NotificationUrl); err != nil {
			logger.Error("Failed to create a failure notifier: %s", err.Error())
		} else {
			failureEvents = noti.Broadcast(notifier)
		}
	}

	//schema operations
	app.router.GET(ts.root+"/schema", CreateJsonAction(func(_ *JsonSource, js *JsonSink, _ httprouter.Params, q url.Values) {
		if collectionList, err := schemaStore.List(); err == nil {
			var result []interface{}
			for _, collection := range collectionList {
				result = append(result, collection.CollectionDescription)
			}
			js.pushList(result, len(result))
		} else {
			js.pushError(err)
		}
	}))

	app.router.GET(ts.root+"/schema/:name", CreateJsonAction(func(_ *JsonSource, js *JsonSink, p httprouter.Params, q url.Values) {
		if collection, err := schemaStore.Get(p.ByName("name")); err == nil {
			js.pushObj(collection.CollectionDescription)
		} else {
			js.pushError(err)
		}
	}))

	app.router.POST(ts.root+"/schema", CreateJsonAction(func(r *JsonSource, js *JsonSink, _ httprouter.Params, q url.Values) {
		collection, err := schemaStore.UnmarshalIncomingJSON(r.Reader())
		if err != nil {
			js.pushError(err)
			return
		}
		if err := schemaStore.Create(collection); err == nil {
			js.pushObj(collection.CollectionDescription)
		} else {
			js.pushError(err)
		}
	}))

	app.router.PATCH(ts.root+"/schema/:name", CreateJsonAction(func(r *JsonSource, js *JsonSink, p httprouter.Params, q url.Values) {
		collection, err := schemaStore.UnmarshalIncomingJSON(r.Reader())
		if err != nil {
			js.pushError(err)
			return
		}
		if updated, err := schemaStore.Update(p.ByName("name"), collection); err != nil {
			js.pushError(err)
		} else if !updated {
			js.pushError(&ServerError{Status: http.StatusNotFound, Code: ErrNotFound})
		} else {
			js.pushObj(collection.CollectionDescription)
		}
	}))

	app.router.DELETE(ts.root+"/schema/:name", CreateJsonAction(func(_ *JsonSource, js *JsonSink, p httprouter.Params, q url.Values) {
		if removed, err := schemaStore.Remove(p.ByName("name")); removed {
			js.pushObj(nil)
		} else if err != nil {
			js.pushError(err)
		} else {
			js.pushError(&ServerError{Status: http.StatusNotFound, Code: ErrNotFound})
		}
	}))

	//record operations
	app.router.POST(ts.root+"/data/:name", CreateJsonAction(func(src *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values) {
		collectionHandle, err := registry.Collection(p.ByName("name"))
		if err != nil {
			sink.pushError(err)
			return
		}
		if createdRecord, err := collectionHandle.Create(src.single); err == nil {
			sink.pushObj(createdRecord)
		} else {
			sink.pushError(err)
		}
	}))

	app.router.GET(ts.root+"/data/:name/:key", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values) {
		collection, err := schemaStore.Get(p.ByName("name"))
		if err != nil {
			sink.pushError(err)
			return
		}
		if collection.Key == nil {
			sink.pushError(NewValidationError(ErrBadRequest, "Collection has no primary key", nil))
			return
		}
		collectionHandle, err := registry.Collection(collection.Name)
		if err != nil {
			sink.pushError(err)
			return
		}
		foundRecord, err := collectionHandle.FindOne(map[string]interface{}{collection.Key.Name: castKeyValue(collection.Key, p.ByName("key"))})
		if err != nil {
			sink.pushError(err)
			return
		}
		if foundRecord == nil {
			sink.pushError(NewNotFoundError(ErrNotFound, "Record not found", nil))
			return
		}
		sink.pushObj(foundRecord)
	}))

	//association operations
	app.router.POST(ts.root+"/data/:name/:key/links", CreateJsonAction(func(src *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values) {
		collection, err := schemaStore.Get(p.ByName("name"))
		if err != nil {
			sink.pushError(err)
			return
		}
		if collection.Key == nil {
			sink.pushError(NewValidationError(ErrBadRequest, "Collection has no primary key", nil))
			return
		}

		parentHandle, err := registry.Collection(collection.Name)
		if err != nil {
			sink.pushError(err)
			return
		}
		keyValue := castKeyValue(collection.Key, p.ByName("key"))
		parentRecord, err := parentHandle.FindOne(map[string]interface{}{collection.Key.Name: keyValue})
		if err != nil {
			sink.pushError(err)
			return
		}
		if parentRecord == nil {
			sink.pushError(NewNotFoundError(ErrNotFound, "Record not found", nil))
			return
		}

		associations := make(map[string][]record.Item, len(src.single))
		for associationName, rawValue := range src.single {
			if rawItems, ok := rawValue.([]interface{}); ok {
				associations[associationName] = record.ClassifyItems(rawItems)
			} else {
				associations[associationName] = record.ClassifyItems([]interface{}{rawValue})
			}
		}

		failedOperations, err := linker.LinkRelated(collection, parentRecord, associations)
		if err != nil {
			sink.pushError(err)
			return
		}
		if failureEvents != nil {
			for _, failedOperation := range failedOperations {
				failureEvents <- noti.NewFailureEvent(structs.Map(failedOperation))
			}
		}
		sink.pushObj(map[string]interface{}{"failed_transactions": failedOperations})
	}))

	app.router.GET(ts.root+"/probe", CreateJsonAction(func(_ *JsonSource, sink *JsonSink, p httprouter.Params, q url.Values) {
		now := int(time.Now().Unix())
		probeData := map[string]interface{}{
			"status": "healthy",
			"uptime": now - config.StartTime,
		}
		sink.pushObj(probeData)
	}))

	if config.EnableProfiler {
		app.router.Handler(http.MethodGet, "/debug/pprof/:item", http.DefaultServeMux)
	}

	app.router.PanicHandler = panicHandler

	ts.s = &http.Server{
		Addr:           ts.addr + ":" + ts.port,
		Handler:        app,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return ts.s
}

func panicHandler(w http.ResponseWriter, r *http.Request, err interface{}) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetRequest(r)
	})
	if err, ok := err.(error); ok {
		sentry.CaptureException(err)
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.Clear()
		})
		returnError(w, err)
	}
}

//incoming key values are path segments; number keys must reach the store as
//numbers
func castKeyValue(keyAttribute *description.Attribute, rawValue string) interface{} {
	if keyAttribute.Type == description.AttributeTypeNumber {
		if intValue, err := strconv.Atoi(rawValue); err == nil {
			return intValue
		}
		if floatValue, err := strconv.ParseFloat(rawValue, 64); err == nil {
			return floatValue
		}
	}
	return rawValue
}

func CreateJsonAction(f func(*JsonSource, *JsonSink, httprouter.Params, url.Values)) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, req *http.Request, p httprouter.Params) {
		sink := asJsonSink(w)
		src, e := (*httpRequest)(req).asJsonSource()
		if e != nil {
			returnError(w, e)
			return
		}
		f(src, sink, p, req.URL.Query())
	}
}

//Returns an error to HTTP response in JSON format.
//If the error object accepted is of ServerError type so HTTP status and code are taken from the error object.
//Otherwise they are set to http.StatusInternalServerError.
func returnError(w http.ResponseWriter, e interface{}) {
	w.Header().Set("Content-Type", "application/json")
	responseData := map[string]interface{}{"status": "FAIL"}
	switch e := e.(type) {
	case *ServerError:
		w.WriteHeader(e.Status)
		responseData["error"] = e.Serialize()
	case *description.ValidationError:
		w.WriteHeader(http.StatusBadRequest)
		responseData["error"] = e.Error()
	case interface {
		error
		Json() []byte
	}:
		//domain errors carry their own JSON shape
		w.WriteHeader(http.StatusBadRequest)
		responseData["error"] = json.RawMessage(e.Json())
	default:
		w.WriteHeader(http.StatusInternalServerError)
		responseData["error"] = e.(error).Error()
	}
	encodedData, _ := json.Marshal(responseData)
	w.Write(encodedData)
}

//The source of JSON object. It contains a value of type map[string]interface{}.
type JsonSource struct {
	body   []byte
	single map[string]interface{}
	list   []map[string]interface{}
}

type httpRequest http.Request

func (js *JsonSource) Reader() io.Reader {
	return bytes.NewReader(js.body)
}

//Converts an HTTP request to the JsonSource if the request is valid and contains a valid JSON object in its body.
func (r *httpRequest) asJsonSource() (*JsonSource, error) {
	if r.Body != nil {
		smime := r.Header.Get(textproto.CanonicalMIMEHeaderKey("Content-Type"))

		if mm, _, e := mime.ParseMediaType(smime); e == nil && mm == "application/json" {
			var result JsonSource
			result.body, _ = ioutil.ReadAll(r.Body)

			if len(result.body) > 0 {
				if e := json.Unmarshal(result.body, &result.single); e != nil {
					if e = json.Unmarshal(result.body, &result.list); e != nil {
						return nil, &ServerError{Status: http.StatusBadRequest, Code: ErrBadRequest, Msg: "bad JSON", Data: e.Error()}
					}
				}
			}
			return &result, nil
		}
	}
	return &JsonSource{}, nil
}

//The JSON object sink into the HTTP response.
type JsonSink struct {
	rw     http.ResponseWriter
	Status string
}

func asJsonSink(w http.ResponseWriter) *JsonSink {
	return &JsonSink{w, "OK"}
}

//Push an error into JsonSink.
func (js *JsonSink) pushError(e error) {
	returnError(js.rw, e)
}

//Push a JSON object into JsonSink.
func (js *JsonSink) pushObj(object interface{}) {
	responseData := map[string]interface{}{"status": js.Status}
	if object != nil {
		responseData["data"] = object
	}
	if encodedData, err := json.Marshal(responseData); err != nil {
		returnError(js.rw, err)
	} else {
		js.rw.Header().Set("Content-Type", "application/json")
		js.rw.WriteHeader(http.StatusOK)
		js.rw.Write(encodedData)
	}
}

func (js *JsonSink) pushList(objects []interface{}, total int) {
	responseData := map[string]interface{}{"status": js.Status}
	if objects == nil {
		objects = make([]interface{}, 0)
	}
	responseData["data"] = objects
	responseData["total_count"] = total

	if encodedData, err := json.Marshal(responseData); err != nil {
		returnError(js.rw, err)
	} else {
		js.rw.Header().Set("Content-Type", "application/json")
		js.rw.WriteHeader(http.StatusOK)
		js.rw.Write(encodedData)
	}
}
