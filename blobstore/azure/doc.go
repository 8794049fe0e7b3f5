// Package azure stores backups in an Azure Blob Storage container.
//
//	client, err := azblob.NewClientFromConnectionString(conn, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := azure.NewStore(client, "romper", "studio-a/")
//
// Backup blobs are small, so Open downloads the whole blob and serves reads
// from memory.
package azure
