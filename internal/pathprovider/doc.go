// Package pathprovider tells file-writing detectors where to put data.
//
// A StaticVisitProvider covers one visit directory. Each Update asks a
// DirectoryService for the next collection number, and Path derives the
// per-device directory and filename from it:
//
//	p := pathprovider.NewStaticVisitProvider("i03", "/dls/i03/data/2026/cm12345-1",
//	    pathprovider.NewLocalDirectoryService())
//	if err := p.Update(ctx, "", ""); err != nil {
//	    return err
//	}
//	info, _ := p.Path("eiger") // Filename: "i03-1-eiger"
package pathprovider
