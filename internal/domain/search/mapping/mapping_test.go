package mapping

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
)

type Reporter struct {
	ID    uint
	Name  string
	Email string
}

type Tag struct {
	ID        uint
	ArticleID uint
	Label     string
}

type Article struct {
	ID         uint
	Title      string
	Status     string
	ReporterID uint
	Reporter   Reporter
	Tags       []Tag `gorm:"foreignKey:ArticleID"`
}

func (Article) SearchFields() []field.Descriptor {
	return []field.Descriptor{
		field.Search("title"),
		field.Filter("status"),
	}
}

type NewsArticle struct {
	Article
	Headline string
}

func (NewsArticle) SearchFields() []field.Descriptor {
	return append(Article{}.SearchFields(), field.Search("headline"))
}

type Review struct {
	Article
	Status string
	Score  int
}

func (Review) SearchFields() []field.Descriptor {
	return append(Article{}.SearchFields(),
		field.Filter("score"),
		field.Search("ghost"),
	)
}

type Feature struct {
	Article
	Lede string
}

func (Feature) SearchFields() []field.Descriptor {
	return append(Article{}.SearchFields(),
		field.Related("reporter", field.Search("name"), field.Filter("email")),
		field.Related("tags", field.Filter("label")),
	)
}

type Photo struct {
	ID      uint
	Caption string
}

func (Photo) SearchFields() []field.Descriptor {
	return []field.Descriptor{field.Search("caption", field.Boost(2))}
}

func newRegistry(t *testing.T) *index.Registry {
	t.Helper()
	r := index.NewRegistry(nil)
	r.MustRegister(&Article{}, index.Namespace("news"))
	r.MustRegister(&NewsArticle{}, index.Namespace("news"))
	r.MustRegister(&Review{}, index.Namespace("news"))
	r.MustRegister(&Feature{}, index.Namespace("news"))
	r.MustRegister(&Photo{}, index.Namespace("media"))
	return r
}

func mappingFor(t *testing.T, r *index.Registry, v any) *Mapping {
	t.Helper()
	m, err := r.ModelOf(v)
	if err != nil {
		t.Fatalf("ModelOf(%T): %v", v, err)
	}
	return New(r, m)
}

func TestDocument_InheritedHierarchy(t *testing.T) {
	r := newRegistry(t)
	mp := mappingFor(t, r, &NewsArticle{})

	doc, err := mp.Document(context.Background(), &NewsArticle{
		Article:  Article{ID: 1, Title: "T", Status: "published"},
		Headline: "H",
	})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	want := map[string]any{
		"title":                      "T",
		"status_filter":              "published",
		"news_newsarticle__headline": "H",
		ContentTypeColumn:            []string{"news.NewsArticle", "news.Article"},
	}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("Document() = %#v\nwant %#v", doc, want)
	}
}

func TestFieldColumnName_RedeclaredBelowRoot(t *testing.T) {
	r := newRegistry(t)
	status := field.Search("status")

	if got := mappingFor(t, r, &Article{}).FieldColumnName(status); got != "status" {
		t.Errorf("root column = %q, want status", got)
	}
	if got := mappingFor(t, r, &Review{}).FieldColumnName(status); got != "news_review__status" {
		t.Errorf("leaf column = %q, want news_review__status", got)
	}
	if got := mappingFor(t, r, &Review{}).FieldColumnName(field.Filter("title")); got != "title_filter" {
		t.Errorf("inherited filter column = %q, want title_filter", got)
	}
}

func TestDocument_SkipsUnresolvedFields(t *testing.T) {
	r := newRegistry(t)
	mp := mappingFor(t, r, &Review{})

	doc, err := mp.Document(context.Background(), Review{
		Article: Article{ID: 2, Title: "R", Status: "shadowed"},
		Status:  "approved",
		Score:   4,
	})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	if _, ok := doc["ghost"]; ok {
		t.Error("ghost field should be skipped")
	}
	if doc["news_review__status_filter"] != "approved" {
		t.Errorf("status = %#v, want the redeclared value", doc["news_review__status_filter"])
	}
	if doc["news_review__score_filter"] != 4 {
		t.Errorf("score = %#v, want 4", doc["news_review__score_filter"])
	}
	if len(doc) != 4 {
		t.Errorf("len(doc) = %d, want 4: %v", len(doc), doc)
	}
}

func TestDocument_RelatedFieldsNested(t *testing.T) {
	r := newRegistry(t)
	mp := mappingFor(t, r, &Feature{})

	doc, err := mp.Document(context.Background(), &Feature{
		Article: Article{
			ID:       3,
			Title:    "F",
			Reporter: Reporter{ID: 9, Name: "Ann", Email: "ann@example.com"},
			Tags:     []Tag{{Label: "go"}, {Label: "search"}},
		},
	})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}

	wantReporter := map[string]any{"name": "Ann", "email_filter": "ann@example.com"}
	if !reflect.DeepEqual(doc["reporter"], wantReporter) {
		t.Errorf("reporter = %#v, want %#v", doc["reporter"], wantReporter)
	}
	wantTags := []map[string]any{{"label_filter": "go"}, {"label_filter": "search"}}
	if !reflect.DeepEqual(doc["tags"], wantTags) {
		t.Errorf("tags = %#v, want %#v", doc["tags"], wantTags)
	}
}

func TestDocument_ModelMismatch(t *testing.T) {
	r := newRegistry(t)
	mp := mappingFor(t, r, &Article{})

	if _, err := mp.Document(context.Background(), &Photo{ID: 1}); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("err = %v, want ErrModelMismatch", err)
	}
	if _, err := mp.Document(context.Background(), nil); !errors.Is(err, ErrModelMismatch) {
		t.Errorf("nil err = %v, want ErrModelMismatch", err)
	}
}

func TestDocumentID(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	id, err := mappingFor(t, r, &NewsArticle{}).DocumentID(ctx, &NewsArticle{Article: Article{ID: 42}})
	if err != nil {
		t.Fatalf("DocumentID: %v", err)
	}
	if id != "news_newsarticle:42" {
		t.Errorf("DocumentID() = %q, want news_newsarticle:42", id)
	}

	rootID, err := mappingFor(t, r, &Article{}).DocumentID(ctx, &Article{ID: 42})
	if err != nil {
		t.Fatalf("DocumentID: %v", err)
	}
	if rootID == id {
		t.Errorf("root and subtype rows with the same key share id %q", id)
	}
	if token, pk, ok := SplitDocumentID(rootID); !ok || token != "news_article" || pk != "42" {
		t.Errorf("SplitDocumentID(%q) = %q, %q, %v", rootID, token, pk, ok)
	}

	if _, err := mappingFor(t, r, &Article{}).DocumentID(ctx, &Article{}); !errors.Is(err, ErrNoPrimaryKey) {
		t.Errorf("zero pk err = %v, want ErrNoPrimaryKey", err)
	}
}

func TestContentTypesAndIndexNames(t *testing.T) {
	r := newRegistry(t)
	news := mappingFor(t, r, &NewsArticle{})
	article := mappingFor(t, r, &Article{})
	photo := mappingFor(t, r, &Photo{})

	if news.DocumentType() != "news_article" || article.DocumentType() != "news_article" {
		t.Errorf("hierarchy should share one document type: %q, %q", news.DocumentType(), article.DocumentType())
	}
	if photo.DocumentType() != "media_photo" {
		t.Errorf("DocumentType() = %q, want media_photo", photo.DocumentType())
	}
	if got := news.IndexName("search:"); got != "search:news_article" {
		t.Errorf("IndexName() = %q", got)
	}
	if news.ContentType() != "news.NewsArticle" {
		t.Errorf("ContentType() = %q", news.ContentType())
	}
	if got := article.AllContentTypes(); !reflect.DeepEqual(got, []string{"news.Article"}) {
		t.Errorf("AllContentTypes() = %v", got)
	}
}

func TestColumns_UnionOfHierarchy(t *testing.T) {
	r := newRegistry(t)

	cols := map[string]Column{}
	var order []string
	for _, c := range mappingFor(t, r, &Article{}).Columns() {
		cols[c.Name] = c
		order = append(order, c.Name)
	}

	want := []string{
		"title",
		"status_filter",
		"news_newsarticle__headline",
		"news_review__status_filter",
		"news_review__score_filter",
		"reporter",
		"tags",
	}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("Columns() = %v, want %v", order, want)
	}

	if c := cols["news_review__score_filter"]; c.Kind != field.KindFilter || c.Type != "int" {
		t.Errorf("score column = %+v", c)
	}
	reporter := cols["reporter"]
	if len(reporter.Children) != 2 || reporter.Children[1].Name != "email_filter" {
		t.Errorf("reporter children = %+v", reporter.Children)
	}
	if reporter.Many || !cols["tags"].Many {
		t.Errorf("cardinality: reporter.Many=%v tags.Many=%v", reporter.Many, cols["tags"].Many)
	}

	photo := mappingFor(t, r, &Photo{}).Columns()
	if len(photo) != 1 || photo[0].Boost != 2 {
		t.Errorf("photo columns = %+v", photo)
	}
}
